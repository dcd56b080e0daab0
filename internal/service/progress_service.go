package service

import (
	"academy_backend/internal/localstore"
	"academy_backend/internal/model"
	"academy_backend/internal/repository"
	"academy_backend/internal/util"
	"academy_backend/pkg/logger"
	"academy_backend/pkg/monitoring"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ProgressService 进度对账引擎：远程库为权威存储，本地缓存为降级副本。
// 本地写入同步执行且失败即报错；远程写入尽力而为，失败时标记离线并
// 入列待发写入，等连接恢复或下一次进度事件时补偿重放。
type ProgressService struct {
	ProgressRepo *repository.ProgressRepository
	HistoryRepo  *repository.XPHistoryRepository
	LessonRepo   *repository.LessonRepository
	MissionRepo  *repository.MissionRepository
	Levels       *LevelService
	Local        *localstore.Store
	Probe        *ConnectivityProbe

	now func() time.Time
}

func NewProgressService(
	progressRepo *repository.ProgressRepository,
	historyRepo *repository.XPHistoryRepository,
	lessonRepo *repository.LessonRepository,
	missionRepo *repository.MissionRepository,
	levels *LevelService,
	local *localstore.Store,
	probe *ConnectivityProbe,
) *ProgressService {
	return &ProgressService{
		ProgressRepo: progressRepo,
		HistoryRepo:  historyRepo,
		LessonRepo:   lessonRepo,
		MissionRepo:  missionRepo,
		Levels:       levels,
		Local:        local,
		Probe:        probe,
		now:          time.Now,
	}
}

// GetProgress 读取(租户,用户)的进度；远程不存在时惰性创建零值行。
// 远程不可达时返回本地缓存副本，永远不会因连接问题报错。
func (s *ProgressService) GetProgress(sctx model.SyncContext) (*model.UserProgress, error) {
	if !sctx.Reachable {
		return s.localProgress(sctx)
	}

	progress, err := s.ProgressRepo.Get(sctx.TenantID, sctx.UserID)
	if err != nil {
		s.Probe.MarkOffline()
		logger.Log.Warn("Failed to read progress from remote store, serving local cache",
			zap.String("tenant", sctx.TenantID), zap.String("user", sctx.UserID), zap.Error(err))
		return s.localProgress(sctx)
	}
	if progress == nil {
		progress = model.NewUserProgress(sctx.TenantID, sctx.UserID)
		if err := s.ProgressRepo.Upsert(progress); err != nil {
			s.Probe.MarkOffline()
			logger.Log.Warn("Failed to create progress row, serving local cache", zap.Error(err))
			return s.localProgress(sctx)
		}
	}

	if err := s.cacheProgress(sctx, progress); err != nil {
		return nil, fmt.Errorf("write progress to local cache: %w", err)
	}
	return progress, nil
}

// AddXP 发放XP并推进等级、连续天数与完成计数器。引擎的核心事务：
// totalXp 与 currentLevel 单调不减；远程可达时原子累加并追加流水，
// 任一远程步骤失败则整体降级为仅本地路径并入列补偿写入。
func (s *ProgressService) AddXP(sctx model.SyncContext, amount int, sourceType, sourceID, description string) (*model.XPAwardResult, error) {
	if amount < 0 {
		return nil, fmt.Errorf("xp amount must be non-negative, got %d", amount)
	}
	if description == "" {
		description = fmt.Sprintf("+%d XP (%s)", amount, sourceType)
	}

	table := s.Levels.GetLevelTable(sctx)

	if sctx.Reachable {
		result, err := s.addXPRemote(sctx, table, amount, sourceType, sourceID, description)
		if err == nil {
			return result, nil
		}
		s.Probe.MarkOffline()
		logger.Log.Warn("Remote XP award failed, falling back to local-only path",
			zap.String("tenant", sctx.TenantID), zap.String("user", sctx.UserID),
			zap.String("sourceType", sourceType), zap.Error(err))
		sctx = sctx.Offline()
	}

	return s.addXPLocal(sctx, table, amount, sourceType, sourceID, description)
}

func (s *ProgressService) addXPRemote(sctx model.SyncContext, table *model.LevelTable, amount int, sourceType, sourceID, description string) (*model.XPAwardResult, error) {
	now := s.now()
	today := CanonicalDay(now)

	// 机会性重放积压的待发写入，避免只依赖后台探测
	if n, err := s.drainOutbox(sctx); err != nil {
		return nil, err
	} else if n > 0 {
		logger.Log.Info("Replayed pending writes before XP award", zap.Int("count", n))
	}

	progress, err := s.ProgressRepo.Get(sctx.TenantID, sctx.UserID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = model.NewUserProgress(sctx.TenantID, sctx.UserID)
		if err := s.ProgressRepo.Upsert(progress); err != nil {
			return nil, err
		}
	}
	prevLevel := progress.CurrentLevel
	if prevLevel < 1 {
		prevLevel = 1
	}

	// 原子累加，并发奖励不会相互覆盖
	if err := s.ProgressRepo.IncrementXP(sctx.TenantID, sctx.UserID, amount); err != nil {
		return nil, err
	}
	fresh, err := s.ProgressRepo.Get(sctx.TenantID, sctx.UserID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		fresh = progress
	}
	newTotal := fresh.TotalXP
	// 本地副本可能领先远程（离线期间的累积尚未合并），取两者较大者
	if cached, ok, err := s.cachedProgress(sctx); err != nil {
		return nil, err
	} else if ok && cached.TotalXP+amount > newTotal {
		newTotal = cached.TotalXP + amount
	}

	entry := &model.XPHistory{
		TenantID:    sctx.TenantID,
		UserID:      sctx.UserID,
		Amount:      amount,
		SourceType:  sourceType,
		SourceID:    sourceID,
		Description: description,
	}
	if err := s.HistoryRepo.Append(entry); err != nil {
		return nil, err
	}

	dates, err := s.HistoryRepo.ActivityDates(sctx.TenantID, sctx.UserID, util.StreakHistoryLimit)
	if err != nil {
		return nil, err
	}
	streak := ComputeStreak(dates, now, progress.LongestStreak)

	newLevelNum := table.LevelForXP(newTotal).LevelNumber
	if newLevelNum < prevLevel {
		newLevelNum = prevLevel
	}
	leveledUp := newLevelNum > prevLevel

	updated := *fresh
	updated.TotalXP = newTotal
	updated.CurrentLevel = newLevelNum
	updated.CurrentStreak = streak.Current
	updated.LongestStreak = streak.Longest
	updated.LastActivityDate = maxDay(progress.LastActivityDate, today)
	applySourceCounter(&updated, sourceType)
	if err := s.ProgressRepo.Upsert(&updated); err != nil {
		return nil, err
	}

	// 本地缓存同步回写；本地失败是致命错误
	if err := s.cacheProgress(sctx, &updated); err != nil {
		return nil, fmt.Errorf("write progress to local cache: %w", err)
	}
	if err := s.recordLocalActivity(sctx, today); err != nil {
		return nil, fmt.Errorf("record local activity date: %w", err)
	}

	monitoring.XPAwardCounter.WithLabelValues(sourceType, "remote").Inc()
	result := &model.XPAwardResult{NewTotalXP: newTotal, LeveledUp: leveledUp, Synced: true}
	if leveledUp {
		result.NewLevel = newLevelNum
		logger.Log.Info("User leveled up",
			zap.String("tenant", sctx.TenantID), zap.String("user", sctx.UserID),
			zap.Int("level", newLevelNum), zap.Int("totalXp", newTotal))
	}
	return result, nil
}

func (s *ProgressService) addXPLocal(sctx model.SyncContext, table *model.LevelTable, amount int, sourceType, sourceID, description string) (*model.XPAwardResult, error) {
	now := s.now()
	today := CanonicalDay(now)

	progress, ok, err := s.cachedProgress(sctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		progress = model.NewUserProgress(sctx.TenantID, sctx.UserID)
	}
	prevLevel := progress.CurrentLevel
	if prevLevel < 1 {
		prevLevel = 1
	}
	newTotal := progress.TotalXP + amount

	if err := s.recordLocalActivity(sctx, today); err != nil {
		return nil, err
	}
	dates, err := s.localActivityDates(sctx)
	if err != nil {
		return nil, err
	}
	streak := ComputeStreak(dates, now, progress.LongestStreak)

	newLevelNum := table.LevelForXP(newTotal).LevelNumber
	if newLevelNum < prevLevel {
		newLevelNum = prevLevel
	}
	leveledUp := newLevelNum > prevLevel

	updated := *progress
	updated.TotalXP = newTotal
	updated.CurrentLevel = newLevelNum
	updated.CurrentStreak = streak.Current
	updated.LongestStreak = streak.Longest
	updated.LastActivityDate = maxDay(progress.LastActivityDate, today)
	applySourceCounter(&updated, sourceType)

	if err := s.cacheProgress(sctx, &updated); err != nil {
		return nil, err
	}
	if err := s.Local.Enqueue(sctx, localstore.OutboxProgress, "self", &updated); err != nil {
		return nil, err
	}

	// 流水条目预生成ID与时间戳，重放落库时保留原活动日并按ID去重
	entry := model.XPHistory{
		TenantID:    sctx.TenantID,
		UserID:      sctx.UserID,
		Amount:      amount,
		SourceType:  sourceType,
		SourceID:    sourceID,
		Description: description,
	}
	entry.ID = model.GenerateUUID()
	entry.CreatedAt = now
	if err := s.Local.Enqueue(sctx, localstore.OutboxHistory, entry.ID, &entry); err != nil {
		return nil, err
	}

	monitoring.XPAwardCounter.WithLabelValues(sourceType, "local").Inc()
	monitoring.SyncFallbackCounter.Inc()

	result := &model.XPAwardResult{NewTotalXP: newTotal, LeveledUp: leveledUp, Synced: false}
	if leveledUp {
		result.NewLevel = newLevelNum
	}
	return result, nil
}

// GetStreak 返回连续学习天数视图（含最近7天活动位图）
func (s *ProgressService) GetStreak(sctx model.SyncContext) (*model.Streak, error) {
	progress, err := s.GetProgress(sctx)
	if err != nil {
		return nil, err
	}
	dates, err := s.activityDates(sctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	streak := ComputeStreak(dates, now, progress.LongestStreak)
	return &model.Streak{
		Current:          streak.Current,
		Longest:          streak.Longest,
		LastActivityDate: progress.LastActivityDate,
		WeekHistory:      WeekHistory(dates, now),
	}, nil
}

// GetStats 返回仪表盘聚合数据。目录统计仅在远程可达时填充。
func (s *ProgressService) GetStats(sctx model.SyncContext) (*model.UserStats, error) {
	progress, err := s.GetProgress(sctx)
	if err != nil {
		return nil, err
	}
	table := s.Levels.GetLevelTable(sctx)

	stats := &model.UserStats{}
	stats.XP.Current = progress.TotalXP
	curr := table.LevelForXP(progress.TotalXP)
	if next, ok := table.NextLevel(curr); ok {
		stats.XP.NextLevel = next.XPRequired
	} else {
		stats.XP.NextLevel = progress.TotalXP
	}
	stats.XP.Percentage = table.ProgressPercent(progress.TotalXP)

	stats.Courses.Completed = progress.CoursesCompleted
	stats.Missions.Completed = progress.MissionsCompleted

	if sctx.Reachable {
		if total, err := s.LessonRepo.CountCourses(sctx.TenantID); err == nil {
			stats.Courses.Total = int(total)
		}
		if inProgress, err := s.LessonRepo.CountCoursesInProgress(sctx.TenantID, sctx.UserID); err == nil {
			stats.Courses.InProgress = int(inProgress)
		}
		if total, err := s.MissionRepo.CountByTenant(sctx.TenantID); err == nil {
			available := int(total) - progress.MissionsCompleted
			if available < 0 {
				available = 0
			}
			stats.Missions.Available = available
		}
	}
	// 徽章体系未上线，聚合位保留为零值
	return stats, nil
}

// GetXPHistory 返回最近的XP流水。流水只存远程，不可达时返回 ErrRemoteUnreachable，
// 调用方应将其转换为"离线"指示而非硬错误。
func (s *ProgressService) GetXPHistory(sctx model.SyncContext, limit int) ([]model.XPHistory, error) {
	if limit <= 0 {
		limit = util.DefaultXPHistoryLimit
	}
	if !sctx.Reachable {
		return nil, util.ErrRemoteUnreachable
	}
	entries, err := s.HistoryRepo.ListRecent(sctx.TenantID, sctx.UserID, limit)
	if err != nil {
		s.Probe.MarkOffline()
		return nil, fmt.Errorf("%w: %v", util.ErrRemoteUnreachable, err)
	}
	return entries, nil
}

// Merge 对账本地缓存与远程库：先重放待发写入，再对进度/课时/任务
// 三类记录做单调合并（状态机推进更远者胜出，数值字段取较大者）。
// 返回本次产生的远程写入数；对同一份数据重复执行第二次必然返回0。
func (s *ProgressService) Merge(sctx model.SyncContext) (int, error) {
	if !sctx.Reachable {
		return 0, util.ErrRemoteUnreachable
	}
	writes := 0

	n, err := s.drainOutbox(sctx)
	writes += n
	if err != nil {
		return writes, err
	}

	n, err = s.mergeProgressRow(sctx)
	writes += n
	if err != nil {
		return writes, err
	}

	n, err = s.mergeLessonRows(sctx)
	writes += n
	if err != nil {
		return writes, err
	}

	n, err = s.mergeMissionRows(sctx)
	writes += n
	if err != nil {
		return writes, err
	}

	if writes > 0 {
		monitoring.MergeWriteCounter.Add(float64(writes))
		logger.Log.Info("Merged local cache into remote store",
			zap.String("tenant", sctx.TenantID), zap.String("user", sctx.UserID),
			zap.Int("writes", writes))
	}
	return writes, nil
}

// Refresh 强制探测一次远程库；可达则先对账再返回最新进度
func (s *ProgressService) Refresh(sctx model.SyncContext) (*model.UserProgress, error) {
	sctx.Reachable = s.Probe.Check(context.Background())
	if sctx.Reachable {
		if _, err := s.Merge(sctx); err != nil {
			logger.Log.Warn("Merge during refresh failed", zap.Error(err))
			sctx = sctx.Offline()
		}
	}
	return s.GetProgress(sctx)
}

// ResetLocal 清空该用户的本地缓存与待发写入；远程数据不受影响
func (s *ProgressService) ResetLocal(sctx model.SyncContext) error {
	logger.Log.Info("Resetting local cache",
		zap.String("tenant", sctx.TenantID), zap.String("user", sctx.UserID))
	return s.Local.ClearPrefix(sctx)
}

// DrainAllOutbox 重放全部租户/用户的待发写入，由连接恢复回调触发
func (s *ProgressService) DrainAllOutbox() {
	entries, err := s.Local.PendingAll()
	if err != nil {
		logger.Log.Error("Failed to list pending writes", zap.Error(err))
		return
	}
	if len(entries) == 0 {
		return
	}
	logger.Log.Info("Connection restored, replaying pending writes", zap.Int("count", len(entries)))
	for _, entry := range entries {
		if err := s.replayOutboxEntry(entry); err != nil {
			s.Probe.MarkOffline()
			logger.Log.Warn("Replay interrupted, remaining writes stay queued", zap.Error(err))
			return
		}
	}
}

// --- 待发写入重放 ---

func (s *ProgressService) drainOutbox(sctx model.SyncContext) (int, error) {
	entries, err := s.Local.Pending(sctx)
	if err != nil {
		return 0, err
	}
	replayed := 0
	for _, entry := range entries {
		if err := s.replayOutboxEntry(entry); err != nil {
			return replayed, err
		}
		replayed++
	}
	return replayed, nil
}

// replayOutboxEntry 把一条待发写入合并进远程库。载荷损坏时丢弃并告警，
// 不让毒丸条目永久阻塞队列。
func (s *ProgressService) replayOutboxEntry(entry localstore.OutboxEntry) error {
	sctx := model.SyncContext{TenantID: entry.TenantID, UserID: entry.UserID, Reachable: true}

	switch entry.Kind {
	case localstore.OutboxProgress:
		var local model.UserProgress
		if err := json.Unmarshal(entry.Payload, &local); err != nil {
			return s.dropCorruptEntry(entry, err)
		}
		remote, err := s.ProgressRepo.Get(sctx.TenantID, sctx.UserID)
		if err != nil {
			return err
		}
		if remote == nil {
			local.ID = ""
			if err := s.ProgressRepo.Upsert(&local); err != nil {
				return err
			}
		} else {
			merged := mergeProgressRecords(&local, remote)
			if !progressEqual(merged, remote) {
				if err := s.ProgressRepo.Upsert(merged); err != nil {
					return err
				}
			}
		}

	case localstore.OutboxLesson:
		var local model.LessonProgress
		if err := json.Unmarshal(entry.Payload, &local); err != nil {
			return s.dropCorruptEntry(entry, err)
		}
		remote, err := s.LessonRepo.GetProgress(sctx.TenantID, sctx.UserID, local.LessonID)
		if err != nil {
			return err
		}
		if remote == nil {
			local.ID = ""
			if err := s.LessonRepo.UpsertProgress(&local); err != nil {
				return err
			}
		} else {
			merged, ambiguous := mergeLessonRecords(&local, remote)
			if ambiguous {
				logger.Log.Warn("Ambiguous lesson statuses during replay, remote wins",
					zap.String("lesson", local.LessonID),
					zap.String("local", string(local.Status)), zap.String("remote", string(remote.Status)))
			}
			if !lessonProgressEqual(merged, remote) {
				if err := s.LessonRepo.UpsertProgress(merged); err != nil {
					return err
				}
			}
		}

	case localstore.OutboxMission:
		var local model.MissionProgress
		if err := json.Unmarshal(entry.Payload, &local); err != nil {
			return s.dropCorruptEntry(entry, err)
		}
		remote, err := s.MissionRepo.GetProgress(sctx.TenantID, sctx.UserID, local.MissionID)
		if err != nil {
			return err
		}
		if remote == nil {
			local.ID = ""
			if err := s.MissionRepo.UpsertProgress(&local); err != nil {
				return err
			}
		} else {
			merged, ambiguous := mergeMissionRecords(&local, remote)
			if ambiguous {
				logger.Log.Warn("Ambiguous mission statuses during replay, remote wins",
					zap.String("mission", local.MissionID),
					zap.String("local", string(local.Status)), zap.String("remote", string(remote.Status)))
			}
			if !missionProgressEqual(merged, remote) {
				if err := s.MissionRepo.UpsertProgress(merged); err != nil {
					return err
				}
			}
		}

	case localstore.OutboxHistory:
		var hist model.XPHistory
		if err := json.Unmarshal(entry.Payload, &hist); err != nil {
			return s.dropCorruptEntry(entry, err)
		}
		exists, err := s.HistoryRepo.Exists(hist.ID)
		if err != nil {
			return err
		}
		if !exists {
			if err := s.HistoryRepo.Append(&hist); err != nil {
				return err
			}
		}

	default:
		return s.dropCorruptEntry(entry, fmt.Errorf("unknown outbox kind %q", entry.Kind))
	}

	monitoring.OutboxDrainCounter.Inc()
	return s.Local.Ack(entry.ID)
}

func (s *ProgressService) dropCorruptEntry(entry localstore.OutboxEntry, cause error) error {
	logger.Log.Error("Dropping corrupt pending write",
		zap.Uint("id", entry.ID), zap.String("kind", entry.Kind), zap.Error(cause))
	return s.Local.Ack(entry.ID)
}

// --- 三类记录的对账 ---

func (s *ProgressService) mergeProgressRow(sctx model.SyncContext) (int, error) {
	cached, ok, err := s.cachedProgress(sctx)
	if err != nil {
		return 0, err
	}
	remote, err := s.ProgressRepo.Get(sctx.TenantID, sctx.UserID)
	if err != nil {
		return 0, err
	}

	switch {
	case !ok && remote == nil:
		return 0, nil
	case !ok:
		return 0, s.cacheProgress(sctx, remote)
	case remote == nil:
		push := *cached
		push.ID = ""
		if err := s.ProgressRepo.Upsert(&push); err != nil {
			return 0, err
		}
		return 1, s.cacheProgress(sctx, &push)
	}

	merged := mergeProgressRecords(cached, remote)
	// 连续天数以远程流水为准重算（本地积压流水已在对账前落库）
	if dates, err := s.HistoryRepo.ActivityDates(sctx.TenantID, sctx.UserID, util.StreakHistoryLimit); err == nil {
		streak := ComputeStreak(dates, s.now(), merged.LongestStreak)
		merged.CurrentStreak = streak.Current
		merged.LongestStreak = streak.Longest
	}

	writes := 0
	if !progressEqual(merged, remote) {
		if err := s.ProgressRepo.Upsert(merged); err != nil {
			return 0, err
		}
		writes = 1
	}
	if !progressEqual(merged, cached) {
		if err := s.cacheProgress(sctx, merged); err != nil {
			return writes, err
		}
	}
	return writes, nil
}

func (s *ProgressService) mergeLessonRows(sctx model.SyncContext) (int, error) {
	remoteRows, err := s.LessonRepo.ListProgress(sctx.TenantID, sctx.UserID)
	if err != nil {
		return 0, err
	}
	remoteByLesson := make(map[string]*model.LessonProgress, len(remoteRows))
	for i := range remoteRows {
		remoteByLesson[remoteRows[i].LessonID] = &remoteRows[i]
	}

	keys, err := s.Local.Keys(localstore.Key(sctx, localstore.KindLesson) + "/")
	if err != nil {
		return 0, err
	}

	writes := 0
	for _, key := range keys {
		var local model.LessonProgress
		found, err := s.Local.Get(key, &local)
		if err != nil || !found {
			continue
		}
		remote, exists := remoteByLesson[local.LessonID]
		if !exists {
			push := local
			push.ID = ""
			if err := s.LessonRepo.UpsertProgress(&push); err != nil {
				return writes, err
			}
			writes++
			if err := s.Local.Put(key, &push); err != nil {
				return writes, err
			}
			continue
		}
		delete(remoteByLesson, local.LessonID)

		merged, ambiguous := mergeLessonRecords(&local, remote)
		if ambiguous {
			logger.Log.Warn("Ambiguous lesson statuses during merge, remote wins",
				zap.String("lesson", local.LessonID),
				zap.String("local", string(local.Status)), zap.String("remote", string(remote.Status)))
		}
		if !lessonProgressEqual(merged, remote) {
			if err := s.LessonRepo.UpsertProgress(merged); err != nil {
				return writes, err
			}
			writes++
		}
		if !lessonProgressEqual(merged, &local) {
			if err := s.Local.Put(key, merged); err != nil {
				return writes, err
			}
		}
	}

	// 仅远程的记录回填缓存，不计为远程写入
	for _, remote := range remoteByLesson {
		key := localstore.Key(sctx, localstore.KindLesson, remote.LessonID)
		if err := s.Local.Put(key, remote); err != nil {
			return writes, err
		}
	}
	return writes, nil
}

func (s *ProgressService) mergeMissionRows(sctx model.SyncContext) (int, error) {
	remoteRows, err := s.MissionRepo.ListProgress(sctx.TenantID, sctx.UserID)
	if err != nil {
		return 0, err
	}
	remoteByMission := make(map[string]*model.MissionProgress, len(remoteRows))
	for i := range remoteRows {
		remoteByMission[remoteRows[i].MissionID] = &remoteRows[i]
	}

	keys, err := s.Local.Keys(localstore.Key(sctx, localstore.KindMission) + "/")
	if err != nil {
		return 0, err
	}

	writes := 0
	for _, key := range keys {
		var local model.MissionProgress
		found, err := s.Local.Get(key, &local)
		if err != nil || !found {
			continue
		}
		remote, exists := remoteByMission[local.MissionID]
		if !exists {
			push := local
			push.ID = ""
			if err := s.MissionRepo.UpsertProgress(&push); err != nil {
				return writes, err
			}
			writes++
			if err := s.Local.Put(key, &push); err != nil {
				return writes, err
			}
			continue
		}
		delete(remoteByMission, local.MissionID)

		merged, ambiguous := mergeMissionRecords(&local, remote)
		if ambiguous {
			logger.Log.Warn("Ambiguous mission statuses during merge, remote wins",
				zap.String("mission", local.MissionID),
				zap.String("local", string(local.Status)), zap.String("remote", string(remote.Status)))
		}
		if !missionProgressEqual(merged, remote) {
			if err := s.MissionRepo.UpsertProgress(merged); err != nil {
				return writes, err
			}
			writes++
		}
		if !missionProgressEqual(merged, &local) {
			if err := s.Local.Put(key, merged); err != nil {
				return writes, err
			}
		}
	}

	for _, remote := range remoteByMission {
		key := localstore.Key(sctx, localstore.KindMission, remote.MissionID)
		if err := s.Local.Put(key, remote); err != nil {
			return writes, err
		}
	}
	return writes, nil
}

// --- 合并与相等判断（只看业务字段，忽略ID与时间戳） ---

// mergeProgressRecords 进度行合并：数值字段取较大者，活动日取较晚者。
// 两侧都单调推进，字段级取大即为无冲突合并。
func mergeProgressRecords(local, remote *model.UserProgress) *model.UserProgress {
	merged := *remote
	merged.TotalXP = maxInt(local.TotalXP, remote.TotalXP)
	merged.CurrentLevel = maxInt(local.CurrentLevel, remote.CurrentLevel)
	merged.CoursesCompleted = maxInt(local.CoursesCompleted, remote.CoursesCompleted)
	merged.LessonsCompleted = maxInt(local.LessonsCompleted, remote.LessonsCompleted)
	merged.MissionsCompleted = maxInt(local.MissionsCompleted, remote.MissionsCompleted)
	merged.CurrentStreak = maxInt(local.CurrentStreak, remote.CurrentStreak)
	merged.LongestStreak = maxInt(local.LongestStreak, remote.LongestStreak)
	merged.LastActivityDate = maxDay(local.LastActivityDate, remote.LastActivityDate)
	return &merged
}

func progressEqual(a, b *model.UserProgress) bool {
	return a.TotalXP == b.TotalXP &&
		a.CurrentLevel == b.CurrentLevel &&
		a.CoursesCompleted == b.CoursesCompleted &&
		a.LessonsCompleted == b.LessonsCompleted &&
		a.MissionsCompleted == b.MissionsCompleted &&
		a.CurrentStreak == b.CurrentStreak &&
		a.LongestStreak == b.LongestStreak &&
		a.LastActivityDate == b.LastActivityDate
}

func mergeLessonRecords(local, remote *model.LessonProgress) (*model.LessonProgress, bool) {
	merged := *remote
	winner, _, ambiguous := model.MergeStatus(local.Status, remote.Status)
	merged.Status = winner
	merged.VideoWatchedPercent = maxInt(local.VideoWatchedPercent, remote.VideoWatchedPercent)
	if local.MaxWatchedTime > merged.MaxWatchedTime {
		merged.MaxWatchedTime = local.MaxWatchedTime
	}
	if local.VideoCurrentTime > merged.VideoCurrentTime {
		merged.VideoCurrentTime = local.VideoCurrentTime
	}
	merged.QuizBestScore = maxInt(local.QuizBestScore, remote.QuizBestScore)
	merged.QuizCompleted = local.QuizCompleted || remote.QuizCompleted
	merged.XPEarned = maxInt(local.XPEarned, remote.XPEarned)
	merged.CompletedAt = earliestTime(local.CompletedAt, remote.CompletedAt)
	return &merged, ambiguous
}

func lessonProgressEqual(a, b *model.LessonProgress) bool {
	return a.Status == b.Status &&
		a.VideoWatchedPercent == b.VideoWatchedPercent &&
		a.VideoCurrentTime == b.VideoCurrentTime &&
		a.MaxWatchedTime == b.MaxWatchedTime &&
		a.QuizBestScore == b.QuizBestScore &&
		a.QuizCompleted == b.QuizCompleted &&
		a.XPEarned == b.XPEarned &&
		timePtrEqual(a.CompletedAt, b.CompletedAt)
}

func mergeMissionRecords(local, remote *model.MissionProgress) (*model.MissionProgress, bool) {
	merged := *remote
	winner, _, ambiguous := model.MergeStatus(local.Status, remote.Status)
	merged.Status = winner

	// 清单勾选取并集：勾选只会增加
	state := remote.Checklist()
	for id, checked := range local.Checklist() {
		if checked {
			state[id] = true
		}
	}
	// map序列化失败只可能是编码器故障，忽略即保留远程原状态
	_ = merged.SetChecklist(state)

	merged.HelpUsed = local.HelpUsed || remote.HelpUsed
	merged.XPEarned = maxInt(local.XPEarned, remote.XPEarned)
	merged.StartedAt = earliestTime(local.StartedAt, remote.StartedAt)
	merged.CompletedAt = earliestTime(local.CompletedAt, remote.CompletedAt)
	return &merged, ambiguous
}

func missionProgressEqual(a, b *model.MissionProgress) bool {
	if a.Status != b.Status ||
		a.HelpUsed != b.HelpUsed ||
		a.XPEarned != b.XPEarned ||
		!timePtrEqual(a.StartedAt, b.StartedAt) ||
		!timePtrEqual(a.CompletedAt, b.CompletedAt) {
		return false
	}
	ac, bc := a.Checklist(), b.Checklist()
	if len(ac) != len(bc) {
		return false
	}
	for id, checked := range ac {
		if bc[id] != checked {
			return false
		}
	}
	return true
}

// --- 本地缓存存取 ---

func (s *ProgressService) localProgress(sctx model.SyncContext) (*model.UserProgress, error) {
	progress, ok, err := s.cachedProgress(sctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		progress = model.NewUserProgress(sctx.TenantID, sctx.UserID)
		if err := s.cacheProgress(sctx, progress); err != nil {
			return nil, err
		}
	}
	return progress, nil
}

func (s *ProgressService) cachedProgress(sctx model.SyncContext) (*model.UserProgress, bool, error) {
	var progress model.UserProgress
	found, err := s.Local.Get(localstore.Key(sctx, localstore.KindProgress), &progress)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &progress, true, nil
}

func (s *ProgressService) cacheProgress(sctx model.SyncContext, progress *model.UserProgress) error {
	return s.Local.Put(localstore.Key(sctx, localstore.KindProgress), progress)
}

// activityDates 活动日来源：可达时读远程流水，失败或离线时读本地日期表
func (s *ProgressService) activityDates(sctx model.SyncContext) ([]string, error) {
	if sctx.Reachable {
		dates, err := s.HistoryRepo.ActivityDates(sctx.TenantID, sctx.UserID, util.StreakHistoryLimit)
		if err == nil {
			return dates, nil
		}
		s.Probe.MarkOffline()
		logger.Log.Warn("Failed to read activity dates from remote store, using local copy", zap.Error(err))
	}
	return s.localActivityDates(sctx)
}

func (s *ProgressService) localActivityDates(sctx model.SyncContext) ([]string, error) {
	var dates []string
	_, err := s.Local.Get(localstore.Key(sctx, localstore.KindActivityDates), &dates)
	if err != nil {
		return nil, err
	}
	return dates, nil
}

func (s *ProgressService) recordLocalActivity(sctx model.SyncContext, day string) error {
	dates, err := s.localActivityDates(sctx)
	if err != nil {
		return err
	}
	for _, d := range dates {
		if d == day {
			return nil
		}
	}
	dates = append([]string{day}, dates...)
	if len(dates) > util.LocalActivityDatesMax {
		dates = dates[:util.LocalActivityDatesMax]
	}
	return s.Local.Put(localstore.Key(sctx, localstore.KindActivityDates), dates)
}

// --- 小工具 ---

// applySourceCounter 按XP来源类型累加对应完成计数器
func applySourceCounter(progress *model.UserProgress, sourceType string) {
	switch sourceType {
	case util.XPSourceLesson:
		progress.LessonsCompleted++
	case util.XPSourceCourse:
		progress.CoursesCompleted++
	case util.XPSourceMission:
		progress.MissionsCompleted++
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// maxDay YYYY-MM-DD 的字典序即时间序
func maxDay(a, b string) string {
	if a > b {
		return a
	}
	return b
}

func earliestTime(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.Before(*b) {
		return a
	}
	return b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
