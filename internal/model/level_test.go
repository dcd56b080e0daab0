package model

import "testing"

func TestLevelForXPBoundaries(t *testing.T) {
	table := NewLevelTable(DefaultLevels())

	tests := []struct {
		totalXP   int
		wantLevel int
	}{
		{-10, 1},
		{0, 1},
		{499, 1},
		{500, 2},
		{1499, 2},
		{1500, 3},
		{3499, 3},
		{3500, 4},
		{99999, 4},
	}
	for _, tt := range tests {
		if got := table.LevelForXP(tt.totalXP).LevelNumber; got != tt.wantLevel {
			t.Errorf("LevelForXP(%d) = %d, want %d", tt.totalXP, got, tt.wantLevel)
		}
	}
}

func TestNewLevelTableEmptyFallsBackToDefaults(t *testing.T) {
	table := NewLevelTable(nil)
	if got := len(table.Levels()); got != 4 {
		t.Fatalf("len(Levels()) = %d, want 4", got)
	}
	if got := table.LevelForXP(600).LevelNumber; got != 2 {
		t.Errorf("LevelForXP(600) = %d, want 2", got)
	}
}

func TestNewLevelTableSortsByXPRequired(t *testing.T) {
	table := NewLevelTable([]Level{
		{LevelNumber: 3, XPRequired: 1500},
		{LevelNumber: 1, XPRequired: 0},
		{LevelNumber: 2, XPRequired: 500},
	})
	levels := table.Levels()
	for i := 1; i < len(levels); i++ {
		if levels[i-1].XPRequired > levels[i].XPRequired {
			t.Fatalf("levels not sorted: %v", levels)
		}
	}
}

func TestXPRange(t *testing.T) {
	table := NewLevelTable(DefaultLevels())

	l1 := table.LevelForXP(0)
	if min, max := table.XPRange(l1); min != 0 || max != 499 {
		t.Errorf("XPRange(level 1) = [%d, %d], want [0, 499]", min, max)
	}

	top := table.LevelForXP(5000)
	if min, max := table.XPRange(top); min != 3500 || max != -1 {
		t.Errorf("XPRange(top level) = [%d, %d], want [3500, -1]", min, max)
	}
}

func TestProgressPercent(t *testing.T) {
	table := NewLevelTable(DefaultLevels())

	tests := []struct {
		totalXP int
		want    int
	}{
		{0, 0},
		{250, 50},
		{499, 99},
		{500, 0},
		{1000, 50},
		{3500, 100},
		{9000, 100},
	}
	for _, tt := range tests {
		if got := table.ProgressPercent(tt.totalXP); got != tt.want {
			t.Errorf("ProgressPercent(%d) = %d, want %d", tt.totalXP, got, tt.want)
		}
	}
}

func TestNextLevel(t *testing.T) {
	table := NewLevelTable(DefaultLevels())

	next, ok := table.NextLevel(table.LevelForXP(0))
	if !ok || next.LevelNumber != 2 || next.XPRequired != 500 {
		t.Errorf("NextLevel(1) = %+v ok=%v, want level 2 at 500", next, ok)
	}
	if _, ok := table.NextLevel(table.LevelForXP(9000)); ok {
		t.Error("NextLevel(top) should report no next level")
	}
}
