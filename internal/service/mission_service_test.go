package service

import (
	"academy_backend/internal/model"
	"academy_backend/internal/util"
	"encoding/json"
	"errors"
	"testing"
)

// seedMissions 两个任务：m1 无前置（1个required+1个可选清单项），m2 以 m1 为前置
func seedMissions(t *testing.T, env *testEnv) (m1, m2 *model.Mission) {
	t.Helper()

	items := []model.ChecklistItem{
		{ID: "read-docs", Text: "Read the docs", Required: true},
		{ID: "extra", Text: "Optional extra", Required: false},
	}
	requirements, err := json.Marshal(items)
	if err != nil {
		t.Fatal(err)
	}
	m1 = &model.Mission{
		TenantID: "t1", Title: "First mission", XPReward: 80,
		Requirements: requirements, OrderIndex: 1,
	}
	if err := env.remote.Create(m1).Error; err != nil {
		t.Fatalf("seed m1: %v", err)
	}

	prereqs, err := json.Marshal([]string{m1.ID})
	if err != nil {
		t.Fatal(err)
	}
	m2 = &model.Mission{
		TenantID: "t1", Title: "Second mission", XPReward: 120,
		Prerequisites: prereqs, OrderIndex: 2,
	}
	if err := env.remote.Create(m2).Error; err != nil {
		t.Fatalf("seed m2: %v", err)
	}
	return m1, m2
}

func findOverview(t *testing.T, overviews []MissionOverview, missionID string) MissionOverview {
	t.Helper()
	for _, o := range overviews {
		if o.Mission.ID == missionID {
			return o
		}
	}
	t.Fatalf("mission %s not in list", missionID)
	return MissionOverview{}
}

func TestListMissionsComputesAvailability(t *testing.T) {
	env := newTestEnv(t)
	m1, m2 := seedMissions(t, env)
	sctx := env.ctx(true)

	overviews, err := env.missions.ListMissions(sctx)
	if err != nil {
		t.Fatalf("ListMissions: %v", err)
	}
	if len(overviews) != 2 {
		t.Fatalf("len = %d, want 2", len(overviews))
	}
	if got := findOverview(t, overviews, m1.ID).Progress.Status; got != model.StatusAvailable {
		t.Errorf("m1 status = %s, want available (no prerequisites)", got)
	}
	if got := findOverview(t, overviews, m2.ID).Progress.Status; got != model.StatusLocked {
		t.Errorf("m2 status = %s, want locked behind m1", got)
	}
}

func TestStartMissionRejectsLocked(t *testing.T) {
	env := newTestEnv(t)
	_, m2 := seedMissions(t, env)

	_, err := env.missions.StartMission(env.ctx(true), m2.ID)
	if !errors.Is(err, util.ErrMissionNotAvailable) {
		t.Errorf("err = %v, want ErrMissionNotAvailable", err)
	}
}

func TestStartMissionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	m1, _ := seedMissions(t, env)
	sctx := env.ctx(true)

	first, err := env.missions.StartMission(sctx, m1.ID)
	if err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	if first.Status != model.StatusInProgress || first.StartedAt == nil {
		t.Errorf("progress = %+v, want in_progress with StartedAt", first)
	}

	second, err := env.missions.StartMission(sctx, m1.ID)
	if err != nil {
		t.Fatalf("second StartMission: %v", err)
	}
	if second.Status != model.StatusInProgress || second.StartedAt == nil {
		t.Errorf("progress after restart = %+v, want unchanged in_progress", second)
	}
	if second.StartedAt.Unix() != first.StartedAt.Unix() {
		t.Error("restart must not move StartedAt")
	}
}

func TestToggleChecklistItemValidation(t *testing.T) {
	env := newTestEnv(t)
	m1, _ := seedMissions(t, env)
	sctx := env.ctx(true)

	if _, err := env.missions.ToggleChecklistItem(sctx, m1.ID, "no-such-item", true); !errors.Is(err, util.ErrChecklistItemNotFound) {
		t.Errorf("err = %v, want ErrChecklistItemNotFound", err)
	}

	progress, err := env.missions.ToggleChecklistItem(sctx, m1.ID, "read-docs", true)
	if err != nil {
		t.Fatalf("ToggleChecklistItem: %v", err)
	}
	if progress.Status != model.StatusInProgress {
		t.Errorf("status = %s, first toggle must start the mission", progress.Status)
	}
	if !progress.Checklist()["read-docs"] {
		t.Error("item not checked")
	}

	// 重复同值勾选为无副作用
	again, err := env.missions.ToggleChecklistItem(sctx, m1.ID, "read-docs", true)
	if err != nil {
		t.Fatalf("repeat toggle: %v", err)
	}
	if !again.Checklist()["read-docs"] {
		t.Error("item lost on repeat toggle")
	}
}

func TestCompleteMissionRequiresChecklist(t *testing.T) {
	env := newTestEnv(t)
	m1, _ := seedMissions(t, env)
	sctx := env.ctx(true)

	_, err := env.missions.CompleteMission(sctx, m1.ID)
	if !errors.Is(err, util.ErrRequiredItemsPending) {
		t.Errorf("err = %v, want ErrRequiredItemsPending", err)
	}
	if !errors.Is(err, util.ErrPreconditionNotMet) {
		t.Error("gating error must wrap ErrPreconditionNotMet")
	}

	// required 勾选后即可完成，可选项不阻塞
	if _, err := env.missions.ToggleChecklistItem(sctx, m1.ID, "read-docs", true); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	completion, err := env.missions.CompleteMission(sctx, m1.ID)
	if err != nil {
		t.Fatalf("CompleteMission: %v", err)
	}
	if completion.Progress.Status != model.StatusCompleted || completion.Progress.CompletedAt == nil {
		t.Errorf("progress = %+v, want completed", completion.Progress)
	}
	if completion.Progress.XPEarned != 80 {
		t.Errorf("XPEarned = %d, want 80", completion.Progress.XPEarned)
	}
	if completion.Award == nil || completion.Award.NewTotalXP != 80 {
		t.Errorf("Award = %+v, want 80 XP", completion.Award)
	}

	progress, _ := env.progress.GetProgress(sctx)
	if progress.MissionsCompleted != 1 {
		t.Errorf("MissionsCompleted = %d, want 1", progress.MissionsCompleted)
	}
}

func TestCompleteMissionFromAvailableBackfillsStart(t *testing.T) {
	env := newTestEnv(t)
	mission := &model.Mission{TenantID: "t1", Title: "Quick win", XPReward: 30, OrderIndex: 3}
	if err := env.remote.Create(mission).Error; err != nil {
		t.Fatalf("seed mission: %v", err)
	}
	sctx := env.ctx(true)

	// 无 required 清单项的任务允许从 available 直接完成，隐式经过 in_progress
	completion, err := env.missions.CompleteMission(sctx, mission.ID)
	if err != nil {
		t.Fatalf("CompleteMission: %v", err)
	}
	if completion.Progress.Status != model.StatusCompleted {
		t.Errorf("status = %s, want completed", completion.Progress.Status)
	}
	if completion.Progress.StartedAt == nil || completion.Progress.CompletedAt == nil {
		t.Fatal("StartedAt and CompletedAt must both be set")
	}
	if completion.Progress.StartedAt.Unix() != completion.Progress.CompletedAt.Unix() {
		t.Error("backfilled StartedAt must equal CompletedAt")
	}
	if completion.Progress.XPEarned != 30 {
		t.Errorf("XPEarned = %d, want 30", completion.Progress.XPEarned)
	}
	if completion.Award == nil || completion.Award.NewTotalXP != 30 {
		t.Errorf("Award = %+v, want 30 XP", completion.Award)
	}
}

func TestCompleteMissionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	m1, _ := seedMissions(t, env)
	sctx := env.ctx(true)

	if _, err := env.missions.ToggleChecklistItem(sctx, m1.ID, "read-docs", true); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := env.missions.CompleteMission(sctx, m1.ID); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	before, _ := env.progress.GetProgress(sctx)

	completion, err := env.missions.CompleteMission(sctx, m1.ID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if completion.Award != nil {
		t.Error("repeat completion must not award XP")
	}
	if completion.Progress.XPEarned != 80 {
		t.Errorf("XPEarned = %d, want recorded 80", completion.Progress.XPEarned)
	}

	after, _ := env.progress.GetProgress(sctx)
	if after.TotalXP != before.TotalXP || after.MissionsCompleted != before.MissionsCompleted {
		t.Error("repeat completion changed aggregate progress")
	}
}

func TestCompletingPrerequisiteUnlocksNextMission(t *testing.T) {
	env := newTestEnv(t)
	m1, m2 := seedMissions(t, env)
	sctx := env.ctx(true)

	if _, err := env.missions.ToggleChecklistItem(sctx, m1.ID, "read-docs", true); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := env.missions.CompleteMission(sctx, m1.ID); err != nil {
		t.Fatalf("complete m1: %v", err)
	}

	overviews, err := env.missions.ListMissions(sctx)
	if err != nil {
		t.Fatalf("ListMissions: %v", err)
	}
	if got := findOverview(t, overviews, m2.ID).Progress.Status; got != model.StatusAvailable {
		t.Errorf("m2 status = %s, want available after m1 completes", got)
	}

	// 解锁结果已持久化，单任务读取同样可见
	progress, err := env.missions.GetProgress(sctx, m2.ID)
	if err != nil {
		t.Fatalf("GetProgress m2: %v", err)
	}
	if progress.Status != model.StatusAvailable {
		t.Errorf("persisted m2 status = %s, want available", progress.Status)
	}
}

func TestMarkHelpUsed(t *testing.T) {
	env := newTestEnv(t)
	m1, _ := seedMissions(t, env)
	sctx := env.ctx(true)

	progress, err := env.missions.MarkHelpUsed(sctx, m1.ID)
	if err != nil {
		t.Fatalf("MarkHelpUsed: %v", err)
	}
	if !progress.HelpUsed {
		t.Error("HelpUsed = false")
	}

	again, err := env.missions.MarkHelpUsed(sctx, m1.ID)
	if err != nil {
		t.Fatalf("repeat MarkHelpUsed: %v", err)
	}
	if !again.HelpUsed {
		t.Error("HelpUsed lost on repeat call")
	}
}

func TestChecklistPercent(t *testing.T) {
	items := []model.ChecklistItem{
		{ID: "a", Required: true},
		{ID: "b", Required: true},
		{ID: "c", Required: false},
	}
	requirements, _ := json.Marshal(items)
	mission := &model.Mission{Requirements: requirements}

	progress := &model.MissionProgress{}
	if got := checklistPercent(mission, progress); got != 0 {
		t.Errorf("empty checklist percent = %d, want 0", got)
	}

	progress.SetChecklist(map[string]bool{"a": true, "c": true})
	if got := checklistPercent(mission, progress); got != 50 {
		t.Errorf("percent = %d, want 50 (optional items ignored)", got)
	}

	progress.SetChecklist(map[string]bool{"a": true, "b": true})
	if got := checklistPercent(mission, progress); got != 100 {
		t.Errorf("percent = %d, want 100", got)
	}
}
