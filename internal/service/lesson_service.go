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

// QuizOutcome 测验提交的返回值
// swagger:model QuizOutcome
type QuizOutcome struct {
	Passed   bool                  `json:"passed"`
	Progress *model.LessonProgress `json:"progress"`
	// 仅在本次提交触发完成时返回
	Award *model.XPAwardResult `json:"award,omitempty"`
}

// LessonService 课时进度：视频观看跟踪与测验提交。
// 写入策略与进度引擎一致：本地同步、远程尽力而为。
type LessonService struct {
	LessonRepo *repository.LessonRepository
	Progress   *ProgressService
	Local      *localstore.Store
	Probe      *ConnectivityProbe

	now func() time.Time
}

func NewLessonService(lessonRepo *repository.LessonRepository, progress *ProgressService, local *localstore.Store, probe *ConnectivityProbe) *LessonService {
	return &LessonService{
		LessonRepo: lessonRepo,
		Progress:   progress,
		Local:      local,
		Probe:      probe,
		now:        time.Now,
	}
}

func lessonCatalogKey(sctx model.SyncContext) string {
	return localstore.Key(sctx, localstore.KindCatalog, "lessons")
}

// ListLessons 返回租户的课时目录。可达时回填本地目录缓存，离线时从缓存读取。
func (s *LessonService) ListLessons(sctx model.SyncContext) ([]model.Lesson, error) {
	if sctx.Reachable {
		lessons, err := s.LessonRepo.ListByTenant(sctx.TenantID)
		if err == nil {
			if err := s.Local.Put(lessonCatalogKey(sctx), lessons); err != nil {
				logger.Log.Warn("Failed to cache lesson catalog", zap.Error(err))
			}
			return lessons, nil
		}
		s.Probe.MarkOffline()
		logger.Log.Warn("Failed to list lessons from remote store, using cached catalog", zap.Error(err))
	}
	var lessons []model.Lesson
	if _, err := s.Local.Get(lessonCatalogKey(sctx), &lessons); err != nil {
		return nil, err
	}
	return lessons, nil
}

// GetProgress 返回某课时的进度；从未记录时返回未持久化的零值进度
func (s *LessonService) GetProgress(sctx model.SyncContext, lessonID string) (*model.LessonProgress, error) {
	if sctx.Reachable {
		progress, err := s.LessonRepo.GetProgress(sctx.TenantID, sctx.UserID, lessonID)
		if err != nil {
			s.Probe.MarkOffline()
			logger.Log.Warn("Failed to read lesson progress from remote store, serving local cache", zap.Error(err))
		} else if progress != nil {
			if err := s.Local.Put(localstore.Key(sctx, localstore.KindLesson, lessonID), progress); err != nil {
				return nil, err
			}
			return progress, nil
		} else {
			return newLessonProgress(sctx, lessonID), nil
		}
	}

	var cached model.LessonProgress
	found, err := s.Local.Get(localstore.Key(sctx, localstore.KindLesson, lessonID), &cached)
	if err != nil {
		return nil, err
	}
	if !found {
		return newLessonProgress(sctx, lessonID), nil
	}
	return &cached, nil
}

// RecordVideoProgress 记录视频播放位置。首次播放把状态推进到 in_progress；
// 未完成课时的快进寻址被钳回已观看最远位置，maxWatchedTime 只增不减；
// 已完成课时允许自由寻址。
func (s *LessonService) RecordVideoProgress(sctx model.SyncContext, lessonID string, currentTime float64) (*model.LessonProgress, error) {
	lesson, err := s.findLesson(&sctx, lessonID)
	if err != nil {
		return nil, err
	}

	progress, err := s.GetProgress(sctx, lessonID)
	if err != nil {
		return nil, err
	}

	if progress.Status == model.StatusCompleted {
		progress.VideoCurrentTime = currentTime
		return progress, s.persistLessonProgress(sctx, progress)
	}

	if progress.Status == model.StatusNotStarted || progress.Status == "" {
		progress.Status = model.StatusInProgress
	}

	progress.VideoCurrentTime = ClampSeek(currentTime, progress.MaxWatchedTime)
	if progress.VideoCurrentTime > progress.MaxWatchedTime {
		progress.MaxWatchedTime = progress.VideoCurrentTime
	}
	if lesson.Duration > 0 {
		percent := int(progress.MaxWatchedTime / lesson.Duration * 100)
		if percent > 100 {
			percent = 100
		}
		if percent > progress.VideoWatchedPercent {
			progress.VideoWatchedPercent = percent
		}
	}

	return progress, s.persistLessonProgress(sctx, progress)
}

// SubmitQuiz 提交测验分数。观看进度不足时拒绝；不及格只记录最好成绩；
// 及格时标记课时完成并发放课时XP，课程全部课时完成后追加课程XP。
// 对已完成课时重复提交只更新最好成绩，不再发放XP。
func (s *LessonService) SubmitQuiz(sctx model.SyncContext, lessonID string, score int) (*QuizOutcome, error) {
	lesson, err := s.findLesson(&sctx, lessonID)
	if err != nil {
		return nil, err
	}

	progress, err := s.GetProgress(sctx, lessonID)
	if err != nil {
		return nil, err
	}
	if !progress.QuizUnlocked(util.QuizUnlockPercent) {
		return nil, util.ErrQuizNotUnlocked
	}

	if score > progress.QuizBestScore {
		progress.QuizBestScore = score
	}
	passed := score >= util.QuizPassScore

	// 终态幂等：只更新最好成绩，不重复发放XP
	if progress.Status == model.StatusCompleted {
		return &QuizOutcome{Passed: passed, Progress: progress}, s.persistLessonProgress(sctx, progress)
	}

	if !passed {
		if progress.Status == model.StatusNotStarted || progress.Status == "" {
			progress.Status = model.StatusInProgress
		}
		return &QuizOutcome{Passed: false, Progress: progress}, s.persistLessonProgress(sctx, progress)
	}

	completedAt := s.now()
	progress.Status = model.StatusCompleted
	progress.QuizCompleted = true
	progress.CompletedAt = &completedAt
	progress.XPEarned = lesson.XPReward
	if err := s.persistLessonProgress(sctx, progress); err != nil {
		return nil, err
	}

	award, err := s.Progress.AddXP(sctx, lesson.XPReward, util.XPSourceLesson, lesson.ID,
		"Lesson completed: "+lesson.Title)
	if err != nil {
		return nil, err
	}
	sctx.Reachable = s.Probe.Reachable()

	s.maybeCompleteCourse(sctx, lesson)

	return &QuizOutcome{Passed: true, Progress: progress, Award: award}, nil
}

// maybeCompleteCourse 课程级联：该课程的全部课时都已完成时发放课程XP。
// 判定需要扫描远程课时表，离线时跳过，等下次可达的完成事件再触发。
func (s *LessonService) maybeCompleteCourse(sctx model.SyncContext, lesson *model.Lesson) {
	if !sctx.Reachable || lesson.CourseID == "" {
		return
	}
	pending, err := s.LessonRepo.CountPendingInCourse(sctx.TenantID, sctx.UserID, lesson.CourseID)
	if err != nil {
		s.Probe.MarkOffline()
		logger.Log.Warn("Failed to check course completion", zap.Error(err))
		return
	}
	if pending > 0 {
		return
	}
	course, err := s.LessonRepo.FindCourse(sctx.TenantID, lesson.CourseID)
	if err != nil || course == nil || course.XPReward <= 0 {
		return
	}
	if _, err := s.Progress.AddXP(sctx, course.XPReward, util.XPSourceCourse, course.ID,
		"Course completed: "+course.Title); err != nil {
		logger.Log.Warn("Failed to award course completion XP", zap.Error(err))
		return
	}
	logger.Log.Info("Course completed",
		zap.String("tenant", sctx.TenantID), zap.String("user", sctx.UserID),
		zap.String("course", course.ID), zap.Int("xp", course.XPReward))
}

// ClampSeek 未完成课时的寻址钳制：目标位置超出已观看最远点一定容差后，
// 钳回最远点；容差内的正常播放推进原样放行。
func ClampSeek(target, maxWatched float64) float64 {
	if target < 0 {
		return 0
	}
	if target > maxWatched+util.SeekToleranceSeconds {
		return maxWatched
	}
	return target
}

// findLesson 课时目录查找：可达查远程，离线退回目录缓存
func (s *LessonService) findLesson(sctx *model.SyncContext, lessonID string) (*model.Lesson, error) {
	if sctx.Reachable {
		lesson, err := s.LessonRepo.FindByID(sctx.TenantID, lessonID)
		if err != nil {
			s.Probe.MarkOffline()
			sctx.Reachable = false
			logger.Log.Warn("Failed to read lesson from remote store, using cached catalog", zap.Error(err))
		} else if lesson == nil {
			return nil, util.ErrLessonNotFound
		} else {
			return lesson, nil
		}
	}

	var lessons []model.Lesson
	if _, err := s.Local.Get(lessonCatalogKey(*sctx), &lessons); err != nil {
		return nil, err
	}
	for i := range lessons {
		if lessons[i].ID == lessonID {
			return &lessons[i], nil
		}
	}
	return nil, util.ErrLessonNotFound
}

// persistLessonProgress 本地同步写入，远程尽力而为，失败入列补偿
func (s *LessonService) persistLessonProgress(sctx model.SyncContext, progress *model.LessonProgress) error {
	if err := s.Local.Put(localstore.Key(sctx, localstore.KindLesson, progress.LessonID), progress); err != nil {
		return err
	}
	if sctx.Reachable {
		err := s.LessonRepo.UpsertProgress(progress)
		if err == nil {
			return nil
		}
		s.Probe.MarkOffline()
		logger.Log.Warn("Failed to write lesson progress to remote store, queueing",
			zap.String("lesson", progress.LessonID), zap.Error(err))
	}
	return s.Local.Enqueue(sctx, localstore.OutboxLesson, progress.LessonID, progress)
}

func newLessonProgress(sctx model.SyncContext, lessonID string) *model.LessonProgress {
	return &model.LessonProgress{
		TenantID: sctx.TenantID,
		UserID:   sctx.UserID,
		LessonID: lessonID,
		Status:   model.StatusNotStarted,
	}
}
