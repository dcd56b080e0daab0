package service

import (
	"academy_backend/internal/localstore"
	"academy_backend/internal/model"
	"academy_backend/internal/repository"
	"academy_backend/internal/util"
	"academy_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
)

// MissionOverview 任务目录条目与该用户进度的组合视图
// swagger:model MissionOverview
type MissionOverview struct {
	Mission  model.Mission         `json:"mission"`
	Progress model.MissionProgress `json:"progress"`
	// required 清单项的勾选完成百分比
	ChecklistPercent int `json:"checklistPercent"`
}

// MissionCompletion 完成任务的返回值；重复完成时 Award 为空且 XPEarned 为既有值
// swagger:model MissionCompletion
type MissionCompletion struct {
	Progress *model.MissionProgress `json:"progress"`
	Award    *model.XPAwardResult   `json:"award,omitempty"`
}

// MissionService 任务进度：清单勾选、前置解锁级联与完成发放。
type MissionService struct {
	MissionRepo *repository.MissionRepository
	Progress    *ProgressService
	Local       *localstore.Store
	Probe       *ConnectivityProbe

	now func() time.Time
}

func NewMissionService(missionRepo *repository.MissionRepository, progress *ProgressService, local *localstore.Store, probe *ConnectivityProbe) *MissionService {
	return &MissionService{
		MissionRepo: missionRepo,
		Progress:    progress,
		Local:       local,
		Probe:       probe,
		now:         time.Now,
	}
}

func missionCatalogKey(sctx model.SyncContext) string {
	return localstore.Key(sctx, localstore.KindCatalog, "missions")
}

// ListMissions 返回任务目录与进度的组合视图，并重算每个任务的可用性：
// 前置任务全部完成的锁定任务被级联解锁为 available。
// 可用性变化会被持久化，后续单任务读取看到的是解锁后的状态。
func (s *MissionService) ListMissions(sctx model.SyncContext) ([]MissionOverview, error) {
	missions, err := s.listCatalog(&sctx)
	if err != nil {
		return nil, err
	}
	progressByMission, err := s.progressIndex(sctx, missions)
	if err != nil {
		return nil, err
	}

	completed := make(map[string]bool)
	for id, p := range progressByMission {
		if p.Status == model.StatusCompleted {
			completed[id] = true
		}
	}

	overviews := make([]MissionOverview, 0, len(missions))
	for i := range missions {
		mission := &missions[i]
		progress, ok := progressByMission[mission.ID]
		if !ok {
			progress = newMissionProgress(sctx, mission.ID)
		}

		unlocked := s.prerequisitesMet(mission, completed)
		switch {
		case progress.Status == model.StatusLocked && unlocked:
			progress.Status = model.StatusAvailable
			if err := s.persistMissionProgress(sctx, progress); err != nil {
				return nil, err
			}
			logger.Log.Info("Mission unlocked",
				zap.String("tenant", sctx.TenantID), zap.String("user", sctx.UserID),
				zap.String("mission", mission.ID))
		case !ok && !unlocked:
			progress.Status = model.StatusLocked
		}

		overviews = append(overviews, MissionOverview{
			Mission:          *mission,
			Progress:         *progress,
			ChecklistPercent: checklistPercent(mission, progress),
		})
	}
	return overviews, nil
}

// GetProgress 返回某任务的进度；从未记录时按前置状态返回 locked/available
func (s *MissionService) GetProgress(sctx model.SyncContext, missionID string) (*model.MissionProgress, error) {
	if _, err := s.findMission(&sctx, missionID); err != nil {
		return nil, err
	}
	return s.loadProgress(sctx, missionID)
}

// StartMission 把 available 任务推进到 in_progress。幂等：已开始或已完成时
// 原样返回既有进度；仍被前置锁定时拒绝。
func (s *MissionService) StartMission(sctx model.SyncContext, missionID string) (*model.MissionProgress, error) {
	if _, err := s.findMission(&sctx, missionID); err != nil {
		return nil, err
	}
	progress, err := s.loadProgress(sctx, missionID)
	if err != nil {
		return nil, err
	}

	switch progress.Status {
	case model.StatusInProgress, model.StatusCompleted:
		return progress, nil
	case model.StatusLocked:
		return nil, util.ErrMissionNotAvailable
	}

	startedAt := s.now()
	progress.Status = model.StatusInProgress
	progress.StartedAt = &startedAt
	return progress, s.persistMissionProgress(sctx, progress)
}

// ToggleChecklistItem 勾选/取消勾选一个清单项。项ID必须在任务定义中存在；
// available 任务的首次勾选把状态推进到 in_progress；已完成任务不再变更。
func (s *MissionService) ToggleChecklistItem(sctx model.SyncContext, missionID, itemID string, checked bool) (*model.MissionProgress, error) {
	mission, err := s.findMission(&sctx, missionID)
	if err != nil {
		return nil, err
	}
	items, err := mission.ChecklistItems()
	if err != nil {
		return nil, err
	}
	valid := false
	for _, item := range items {
		if item.ID == itemID {
			valid = true
			break
		}
	}
	if !valid {
		return nil, util.ErrChecklistItemNotFound
	}

	progress, err := s.loadProgress(sctx, missionID)
	if err != nil {
		return nil, err
	}
	switch progress.Status {
	case model.StatusLocked:
		return nil, util.ErrMissionNotAvailable
	case model.StatusCompleted:
		return progress, nil
	}

	state := progress.Checklist()
	if state[itemID] == checked {
		return progress, nil
	}
	state[itemID] = checked
	if err := progress.SetChecklist(state); err != nil {
		return nil, err
	}
	if progress.Status == model.StatusAvailable || progress.Status == model.StatusNotStarted {
		progress.Status = model.StatusInProgress
		if progress.StartedAt == nil {
			startedAt := s.now()
			progress.StartedAt = &startedAt
		}
	}
	return progress, s.persistMissionProgress(sctx, progress)
}

// CompleteMission 完成任务并发放任务XP。required 清单项必须全部勾选；
// 从 available 直接完成（无 required 项的任务）视为隐式经过 in_progress，
// 补记 startedAt 后落到 completed。幂等：重复完成返回既有 xpEarned，不再发放。
func (s *MissionService) CompleteMission(sctx model.SyncContext, missionID string) (*MissionCompletion, error) {
	mission, err := s.findMission(&sctx, missionID)
	if err != nil {
		return nil, err
	}
	progress, err := s.loadProgress(sctx, missionID)
	if err != nil {
		return nil, err
	}

	if progress.Status == model.StatusCompleted {
		return &MissionCompletion{Progress: progress}, nil
	}
	if progress.Status == model.StatusLocked {
		return nil, util.ErrMissionNotAvailable
	}

	items, err := mission.ChecklistItems()
	if err != nil {
		return nil, err
	}
	state := progress.Checklist()
	for _, item := range items {
		if item.Required && !state[item.ID] {
			return nil, util.ErrRequiredItemsPending
		}
	}

	completedAt := s.now()
	progress.Status = model.StatusCompleted
	progress.CompletedAt = &completedAt
	if progress.StartedAt == nil {
		progress.StartedAt = &completedAt
	}
	progress.XPEarned = mission.XPReward
	if err := s.persistMissionProgress(sctx, progress); err != nil {
		return nil, err
	}

	award, err := s.Progress.AddXP(sctx, mission.XPReward, util.XPSourceMission, mission.ID,
		"Mission completed: "+mission.Title)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Mission completed",
		zap.String("tenant", sctx.TenantID), zap.String("user", sctx.UserID),
		zap.String("mission", mission.ID), zap.Int("xp", mission.XPReward))

	return &MissionCompletion{Progress: progress, Award: award}, nil
}

// MarkHelpUsed 记录该任务使用过帮助；不影响状态机与XP
func (s *MissionService) MarkHelpUsed(sctx model.SyncContext, missionID string) (*model.MissionProgress, error) {
	if _, err := s.findMission(&sctx, missionID); err != nil {
		return nil, err
	}
	progress, err := s.loadProgress(sctx, missionID)
	if err != nil {
		return nil, err
	}
	if progress.HelpUsed {
		return progress, nil
	}
	progress.HelpUsed = true
	return progress, s.persistMissionProgress(sctx, progress)
}

// --- 内部 ---

func (s *MissionService) listCatalog(sctx *model.SyncContext) ([]model.Mission, error) {
	if sctx.Reachable {
		missions, err := s.MissionRepo.ListByTenant(sctx.TenantID)
		if err == nil {
			if err := s.Local.Put(missionCatalogKey(*sctx), missions); err != nil {
				logger.Log.Warn("Failed to cache mission catalog", zap.Error(err))
			}
			return missions, nil
		}
		s.Probe.MarkOffline()
		sctx.Reachable = false
		logger.Log.Warn("Failed to list missions from remote store, using cached catalog", zap.Error(err))
	}
	var missions []model.Mission
	if _, err := s.Local.Get(missionCatalogKey(*sctx), &missions); err != nil {
		return nil, err
	}
	return missions, nil
}

func (s *MissionService) findMission(sctx *model.SyncContext, missionID string) (*model.Mission, error) {
	if sctx.Reachable {
		mission, err := s.MissionRepo.FindByID(sctx.TenantID, missionID)
		if err != nil {
			s.Probe.MarkOffline()
			sctx.Reachable = false
			logger.Log.Warn("Failed to read mission from remote store, using cached catalog", zap.Error(err))
		} else if mission == nil {
			return nil, util.ErrMissionNotFound
		} else {
			return mission, nil
		}
	}

	var missions []model.Mission
	if _, err := s.Local.Get(missionCatalogKey(*sctx), &missions); err != nil {
		return nil, err
	}
	for i := range missions {
		if missions[i].ID == missionID {
			return &missions[i], nil
		}
	}
	return nil, util.ErrMissionNotFound
}

// loadProgress 读取任务进度；从未记录时按前置状态给出 locked/available 初始值
func (s *MissionService) loadProgress(sctx model.SyncContext, missionID string) (*model.MissionProgress, error) {
	if sctx.Reachable {
		progress, err := s.MissionRepo.GetProgress(sctx.TenantID, sctx.UserID, missionID)
		if err != nil {
			s.Probe.MarkOffline()
			logger.Log.Warn("Failed to read mission progress from remote store, serving local cache", zap.Error(err))
		} else if progress != nil {
			if err := s.Local.Put(localstore.Key(sctx, localstore.KindMission, missionID), progress); err != nil {
				return nil, err
			}
			return progress, nil
		} else {
			return s.initialProgress(sctx, missionID)
		}
	}

	var cached model.MissionProgress
	found, err := s.Local.Get(localstore.Key(sctx, localstore.KindMission, missionID), &cached)
	if err != nil {
		return nil, err
	}
	if !found {
		return s.initialProgress(sctx, missionID)
	}
	return &cached, nil
}

func (s *MissionService) initialProgress(sctx model.SyncContext, missionID string) (*model.MissionProgress, error) {
	mission, err := s.findMission(&sctx, missionID)
	if err != nil {
		return nil, err
	}
	progress := newMissionProgress(sctx, missionID)
	completed, err := s.completedSet(sctx)
	if err != nil {
		return nil, err
	}
	if s.prerequisitesMet(mission, completed) {
		progress.Status = model.StatusAvailable
	}
	return progress, nil
}

// completedSet 该用户已完成任务的ID集合，用于前置判定
func (s *MissionService) completedSet(sctx model.SyncContext) (map[string]bool, error) {
	completed := make(map[string]bool)
	if sctx.Reachable {
		rows, err := s.MissionRepo.ListProgress(sctx.TenantID, sctx.UserID)
		if err == nil {
			for i := range rows {
				if rows[i].Status == model.StatusCompleted {
					completed[rows[i].MissionID] = true
				}
			}
			return completed, nil
		}
		s.Probe.MarkOffline()
		logger.Log.Warn("Failed to list mission progress from remote store, using local cache", zap.Error(err))
	}

	keys, err := s.Local.Keys(localstore.Key(sctx, localstore.KindMission) + "/")
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		var p model.MissionProgress
		if found, err := s.Local.Get(key, &p); err == nil && found && p.Status == model.StatusCompleted {
			completed[p.MissionID] = true
		}
	}
	return completed, nil
}

func (s *MissionService) progressIndex(sctx model.SyncContext, missions []model.Mission) (map[string]*model.MissionProgress, error) {
	index := make(map[string]*model.MissionProgress, len(missions))
	if sctx.Reachable {
		rows, err := s.MissionRepo.ListProgress(sctx.TenantID, sctx.UserID)
		if err == nil {
			for i := range rows {
				index[rows[i].MissionID] = &rows[i]
				key := localstore.Key(sctx, localstore.KindMission, rows[i].MissionID)
				if err := s.Local.Put(key, &rows[i]); err != nil {
					return nil, err
				}
			}
			return index, nil
		}
		s.Probe.MarkOffline()
		logger.Log.Warn("Failed to list mission progress from remote store, using local cache", zap.Error(err))
	}

	keys, err := s.Local.Keys(localstore.Key(sctx, localstore.KindMission) + "/")
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		var p model.MissionProgress
		if found, err := s.Local.Get(key, &p); err == nil && found {
			copied := p
			index[p.MissionID] = &copied
		}
	}
	return index, nil
}

// prerequisitesMet 前置任务全部完成才解锁；前置定义损坏时保持锁定
func (s *MissionService) prerequisitesMet(mission *model.Mission, completed map[string]bool) bool {
	prereqs, err := mission.PrerequisiteIDs()
	if err != nil {
		logger.Log.Warn("Corrupt mission prerequisites, keeping mission locked",
			zap.String("mission", mission.ID), zap.Error(err))
		return false
	}
	for _, id := range prereqs {
		if !completed[id] {
			return false
		}
	}
	return true
}

// persistMissionProgress 本地同步写入，远程尽力而为，失败入列补偿
func (s *MissionService) persistMissionProgress(sctx model.SyncContext, progress *model.MissionProgress) error {
	if err := s.Local.Put(localstore.Key(sctx, localstore.KindMission, progress.MissionID), progress); err != nil {
		return err
	}
	if sctx.Reachable {
		err := s.MissionRepo.UpsertProgress(progress)
		if err == nil {
			return nil
		}
		s.Probe.MarkOffline()
		logger.Log.Warn("Failed to write mission progress to remote store, queueing",
			zap.String("mission", progress.MissionID), zap.Error(err))
	}
	return s.Local.Enqueue(sctx, localstore.OutboxMission, progress.MissionID, progress)
}

// checklistPercent required 项的勾选完成百分比；无 required 项时恒为100
func checklistPercent(mission *model.Mission, progress *model.MissionProgress) int {
	items, err := mission.ChecklistItems()
	if err != nil {
		return 0
	}
	required, checked := 0, 0
	state := progress.Checklist()
	for _, item := range items {
		if !item.Required {
			continue
		}
		required++
		if state[item.ID] {
			checked++
		}
	}
	if required == 0 {
		return 100
	}
	return checked * 100 / required
}

func newMissionProgress(sctx model.SyncContext, missionID string) *model.MissionProgress {
	return &model.MissionProgress{
		TenantID:  sctx.TenantID,
		UserID:    sctx.UserID,
		MissionID: missionID,
		Status:    model.StatusLocked,
	}
}
