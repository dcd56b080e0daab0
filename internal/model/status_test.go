package model

import "testing"

func TestStatusRankOrdering(t *testing.T) {
	if StatusRank(StatusCompleted) <= StatusRank(StatusInProgress) {
		t.Error("completed must outrank in_progress")
	}
	if StatusRank(StatusInProgress) <= StatusRank(StatusAvailable) {
		t.Error("in_progress must outrank available")
	}
	if StatusRank(StatusAvailable) != StatusRank(StatusNotStarted) {
		t.Error("available and not_started share the same rank")
	}
	if StatusRank(StatusLocked) != 0 {
		t.Error("locked is the lowest rank")
	}
	if StatusRank(StatusFailed) >= StatusRank(StatusCompleted) {
		t.Error("completed must outrank failed")
	}
}

func TestMergeStatus(t *testing.T) {
	tests := []struct {
		name          string
		local, remote ProgressStatus
		want          ProgressStatus
		wantRemote    bool
		wantAmbiguous bool
	}{
		{"local further ahead", StatusCompleted, StatusInProgress, StatusCompleted, false, false},
		{"remote further ahead", StatusAvailable, StatusCompleted, StatusCompleted, true, false},
		{"exact tie remote wins", StatusInProgress, StatusInProgress, StatusInProgress, true, false},
		{"rank tie different labels is ambiguous", StatusFailed, StatusExpired, StatusExpired, true, true},
		{"available vs not_started ambiguous", StatusAvailable, StatusNotStarted, StatusNotStarted, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, remoteWins, ambiguous := MergeStatus(tt.local, tt.remote)
			if winner != tt.want {
				t.Errorf("winner = %s, want %s", winner, tt.want)
			}
			if remoteWins != tt.wantRemote {
				t.Errorf("remoteWins = %v, want %v", remoteWins, tt.wantRemote)
			}
			if ambiguous != tt.wantAmbiguous {
				t.Errorf("ambiguous = %v, want %v", ambiguous, tt.wantAmbiguous)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []ProgressStatus{StatusCompleted, StatusFailed, StatusExpired} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []ProgressStatus{StatusLocked, StatusNotStarted, StatusAvailable, StatusInProgress} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
