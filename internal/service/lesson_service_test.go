package service

import (
	"academy_backend/internal/model"
	"academy_backend/internal/repository"
	"academy_backend/internal/util"
	"errors"
	"testing"
)

func seedLesson(t *testing.T, env *testEnv, courseXP, lessonXP int, duration float64) *model.Lesson {
	t.Helper()
	course := &model.Course{TenantID: "t1", Title: "Go basics", XPReward: courseXP}
	if err := env.remote.Create(course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	lesson := &model.Lesson{
		TenantID: "t1", CourseID: course.ID,
		Title: "Introduction", Duration: duration, XPReward: lessonXP,
	}
	if err := env.remote.Create(lesson).Error; err != nil {
		t.Fatalf("seed lesson: %v", err)
	}
	return lesson
}

func seedLessonProgress(t *testing.T, env *testEnv, lessonID string, mutate func(*model.LessonProgress)) {
	t.Helper()
	progress := &model.LessonProgress{
		TenantID: "t1", UserID: "u1", LessonID: lessonID,
		Status: model.StatusInProgress,
	}
	mutate(progress)
	if err := repository.NewLessonRepository(env.remote).UpsertProgress(progress); err != nil {
		t.Fatalf("seed lesson progress: %v", err)
	}
}

func TestRecordVideoProgressFirstPlay(t *testing.T) {
	env := newTestEnv(t)
	lesson := seedLesson(t, env, 0, 100, 200)
	sctx := env.ctx(true)

	progress, err := env.lessons.RecordVideoProgress(sctx, lesson.ID, 1.5)
	if err != nil {
		t.Fatalf("RecordVideoProgress: %v", err)
	}
	if progress.Status != model.StatusInProgress {
		t.Errorf("Status = %s, want in_progress on first play", progress.Status)
	}
	if progress.MaxWatchedTime != 1.5 || progress.VideoCurrentTime != 1.5 {
		t.Errorf("positions = %v/%v, want 1.5/1.5", progress.VideoCurrentTime, progress.MaxWatchedTime)
	}
}

func TestRecordVideoProgressClampsSeekAhead(t *testing.T) {
	env := newTestEnv(t)
	lesson := seedLesson(t, env, 0, 100, 200)
	sctx := env.ctx(true)
	seedLessonProgress(t, env, lesson.ID, func(p *model.LessonProgress) {
		p.MaxWatchedTime = 120
		p.VideoWatchedPercent = 60
	})

	// 大步快进被钳回已观看最远位置
	progress, err := env.lessons.RecordVideoProgress(sctx, lesson.ID, 150)
	if err != nil {
		t.Fatalf("RecordVideoProgress: %v", err)
	}
	if progress.VideoCurrentTime != 120 {
		t.Errorf("VideoCurrentTime = %v, want clamp to 120", progress.VideoCurrentTime)
	}
	if progress.MaxWatchedTime != 120 {
		t.Errorf("MaxWatchedTime = %v, must not grow on clamped seek", progress.MaxWatchedTime)
	}

	// 容差内的正常播放推进放行
	progress, err = env.lessons.RecordVideoProgress(sctx, lesson.ID, 121)
	if err != nil {
		t.Fatalf("RecordVideoProgress: %v", err)
	}
	if progress.VideoCurrentTime != 121 || progress.MaxWatchedTime != 121 {
		t.Errorf("positions = %v/%v, want 121/121", progress.VideoCurrentTime, progress.MaxWatchedTime)
	}
}

func TestRecordVideoProgressCompletedAllowsFreeSeek(t *testing.T) {
	env := newTestEnv(t)
	lesson := seedLesson(t, env, 0, 100, 200)
	sctx := env.ctx(true)
	seedLessonProgress(t, env, lesson.ID, func(p *model.LessonProgress) {
		p.Status = model.StatusCompleted
		p.MaxWatchedTime = 200
		p.VideoWatchedPercent = 100
	})

	progress, err := env.lessons.RecordVideoProgress(sctx, lesson.ID, 30)
	if err != nil {
		t.Fatalf("RecordVideoProgress: %v", err)
	}
	if progress.VideoCurrentTime != 30 {
		t.Errorf("VideoCurrentTime = %v, want free seek to 30", progress.VideoCurrentTime)
	}
	if progress.Status != model.StatusCompleted {
		t.Errorf("Status = %s, completed is terminal", progress.Status)
	}
}

func TestRecordVideoProgressUnknownLesson(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.lessons.RecordVideoProgress(env.ctx(true), "missing", 10)
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSubmitQuizLockedBelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	lesson := seedLesson(t, env, 0, 100, 200)
	seedLessonProgress(t, env, lesson.ID, func(p *model.LessonProgress) {
		p.VideoWatchedPercent = 50
	})

	_, err := env.lessons.SubmitQuiz(env.ctx(true), lesson.ID, 90)
	if !errors.Is(err, util.ErrQuizNotUnlocked) {
		t.Errorf("err = %v, want ErrQuizNotUnlocked", err)
	}
	if !errors.Is(err, util.ErrPreconditionNotMet) {
		t.Error("quiz-locked error must wrap ErrPreconditionNotMet")
	}
}

func TestSubmitQuizFailRecordsBestScoreOnly(t *testing.T) {
	env := newTestEnv(t)
	lesson := seedLesson(t, env, 0, 100, 200)
	sctx := env.ctx(true)
	seedLessonProgress(t, env, lesson.ID, func(p *model.LessonProgress) {
		p.VideoWatchedPercent = 95
	})

	outcome, err := env.lessons.SubmitQuiz(sctx, lesson.ID, 60)
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}
	if outcome.Passed {
		t.Error("Passed = true for score 60")
	}
	if outcome.Progress.QuizBestScore != 60 {
		t.Errorf("QuizBestScore = %d, want 60", outcome.Progress.QuizBestScore)
	}
	if outcome.Progress.Status == model.StatusCompleted || outcome.Progress.QuizCompleted {
		t.Error("failed quiz must not complete the lesson")
	}

	// 不及格不发XP
	progress, _ := env.progress.GetProgress(sctx)
	if progress.TotalXP != 0 {
		t.Errorf("TotalXP = %d, want 0 after failed quiz", progress.TotalXP)
	}
}

func TestSubmitQuizPassAwardsLessonAndCourseXP(t *testing.T) {
	env := newTestEnv(t)
	lesson := seedLesson(t, env, 50, 100, 200)
	sctx := env.ctx(true)
	seedLessonProgress(t, env, lesson.ID, func(p *model.LessonProgress) {
		p.VideoWatchedPercent = 95
	})

	outcome, err := env.lessons.SubmitQuiz(sctx, lesson.ID, 85)
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}
	if !outcome.Passed || outcome.Award == nil {
		t.Fatalf("outcome = %+v, want pass with award", outcome)
	}
	if outcome.Progress.Status != model.StatusCompleted || !outcome.Progress.QuizCompleted {
		t.Error("passing quiz must complete the lesson")
	}
	if outcome.Progress.XPEarned != 100 {
		t.Errorf("XPEarned = %d, want 100", outcome.Progress.XPEarned)
	}
	if outcome.Progress.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	// 课时XP + 课程级联XP（课程的唯一课时已完成）
	progress, _ := env.progress.GetProgress(sctx)
	if progress.TotalXP != 150 {
		t.Errorf("TotalXP = %d, want 150 (lesson 100 + course 50)", progress.TotalXP)
	}
	if progress.LessonsCompleted != 1 || progress.CoursesCompleted != 1 {
		t.Errorf("counters = lessons %d courses %d, want 1/1",
			progress.LessonsCompleted, progress.CoursesCompleted)
	}
}

func TestSubmitQuizResubmitIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	lesson := seedLesson(t, env, 0, 100, 200)
	sctx := env.ctx(true)
	seedLessonProgress(t, env, lesson.ID, func(p *model.LessonProgress) {
		p.VideoWatchedPercent = 95
	})

	if _, err := env.lessons.SubmitQuiz(sctx, lesson.ID, 80); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	before, _ := env.progress.GetProgress(sctx)

	outcome, err := env.lessons.SubmitQuiz(sctx, lesson.ID, 95)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if outcome.Award != nil {
		t.Error("resubmit must not award XP again")
	}
	if outcome.Progress.QuizBestScore != 95 {
		t.Errorf("QuizBestScore = %d, want best score to improve to 95", outcome.Progress.QuizBestScore)
	}

	after, _ := env.progress.GetProgress(sctx)
	if after.TotalXP != before.TotalXP {
		t.Errorf("TotalXP changed %d -> %d on resubmit", before.TotalXP, after.TotalXP)
	}
}

func TestClampSeek(t *testing.T) {
	tests := []struct {
		name       string
		target     float64
		maxWatched float64
		want       float64
	}{
		{"negative target", -5, 100, 0},
		{"within watched range", 50, 100, 50},
		{"just inside tolerance", 101.5, 100, 101.5},
		{"beyond tolerance clamps", 150, 100, 100},
		{"fresh start", 1, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampSeek(tt.target, tt.maxWatched); got != tt.want {
				t.Errorf("ClampSeek(%v, %v) = %v, want %v", tt.target, tt.maxWatched, got, tt.want)
			}
		})
	}
}
