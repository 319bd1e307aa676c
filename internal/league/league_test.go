package league

import (
	"errors"
	"testing"
	"time"
)

func TestMatchStateMachine(t *testing.T) {
	m, err := NewMatch("Aces", "Blockers", 1)
	if err != nil {
		t.Fatalf("NewMatch() error: %v", err)
	}
	if len(m.ID) != 8 {
		t.Errorf("match id %q, want 8 characters", m.ID)
	}

	t.Run("starts unscheduled", func(t *testing.T) {
		if m.State() != StateUnscheduled {
			t.Errorf("state = %s, want %s", m.State(), StateUnscheduled)
		}
	})

	t.Run("scheduled and unscheduled toggle", func(t *testing.T) {
		at := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
		if err := m.Schedule(at); err != nil {
			t.Fatalf("Schedule() error: %v", err)
		}
		if m.State() != StateScheduled {
			t.Errorf("state = %s, want %s", m.State(), StateScheduled)
		}
		if err := m.Unschedule(); err != nil {
			t.Fatalf("Unschedule() error: %v", err)
		}
		if m.State() != StateUnscheduled || m.ScheduledAt != nil {
			t.Errorf("state = %s, scheduledAt = %v after Unschedule", m.State(), m.ScheduledAt)
		}
	})

	t.Run("tied result is rejected", func(t *testing.T) {
		err := m.Complete(Result{SetsA: 2, SetsB: 2}, time.Now())
		if !errors.Is(err, ErrNoResult) {
			t.Errorf("Complete() error = %v, want ErrNoResult", err)
		}
	})

	t.Run("completed is terminal", func(t *testing.T) {
		if err := m.Complete(Result{SetsA: 3, SetsB: 1, SetScores: []string{"25:20"}}, time.Now()); err != nil {
			t.Fatalf("Complete() error: %v", err)
		}
		if m.State() != StateCompleted {
			t.Errorf("state = %s, want %s", m.State(), StateCompleted)
		}
		if err := m.Complete(Result{SetsA: 3, SetsB: 0}, time.Now()); !errors.Is(err, ErrMatchCompleted) {
			t.Errorf("second Complete() error = %v, want ErrMatchCompleted", err)
		}
		if err := m.Schedule(time.Now()); !errors.Is(err, ErrMatchCompleted) {
			t.Errorf("Schedule() after completion error = %v, want ErrMatchCompleted", err)
		}
		if err := m.Unschedule(); !errors.Is(err, ErrMatchCompleted) {
			t.Errorf("Unschedule() after completion error = %v, want ErrMatchCompleted", err)
		}
	})
}

func TestNewMatchRejectsSelfPairing(t *testing.T) {
	if _, err := NewMatch("Aces", "Aces", 1); !errors.Is(err, ErrSameTeam) {
		t.Errorf("NewMatch() error = %v, want ErrSameTeam", err)
	}
}

func TestSnapshotClone(t *testing.T) {
	s := &Snapshot{
		Teams:   []Team{{Name: "Aces", Rating: 1000, History: []string{"x"}}},
		Matches: []Match{{ID: "m1", TeamA: "Aces", TeamB: "Blockers", Score: &[2]int{3, 0}, SetScores: []string{"25:10"}}},
	}
	c := s.Clone()
	c.Teams[0].Rating = 5
	c.Teams[0].History[0] = "y"
	c.Matches[0].Score[0] = 1
	c.Matches[0].SetScores[0] = "1:1"

	if s.Teams[0].Rating != 1000 || s.Teams[0].History[0] != "x" {
		t.Errorf("team mutated through clone: %+v", s.Teams[0])
	}
	if s.Matches[0].Score[0] != 3 || s.Matches[0].SetScores[0] != "25:10" {
		t.Errorf("match mutated through clone: %+v", s.Matches[0])
	}
}

func TestSnapshotTeams(t *testing.T) {
	s := &Snapshot{}
	for _, name := range []string{"Aces", "Blockers", "Cobras"} {
		if err := s.AddTeam(NewTeam(name, 1000)); err != nil {
			t.Fatalf("AddTeam(%s) error: %v", name, err)
		}
	}
	if err := s.AddTeam(NewTeam("Aces", 900)); !errors.Is(err, ErrDuplicateTeam) {
		t.Errorf("duplicate AddTeam() error = %v, want ErrDuplicateTeam", err)
	}

	s.Matches = []Match{
		{ID: "m1", TeamA: "Aces", TeamB: "Blockers", Week: 1},
		{ID: "m2", TeamA: "Blockers", TeamB: "Cobras", Week: 1},
		{ID: "m3", TeamA: "Cobras", TeamB: "Aces", Week: 2},
	}
	s.Teams[2].Active = false

	if got := len(s.ActiveTeams()); got != 2 {
		t.Errorf("ActiveTeams() = %d teams, want 2", got)
	}
	if got := len(s.MatchesFor("Aces")); got != 2 {
		t.Errorf("MatchesFor(Aces) = %d, want 2", got)
	}

	if err := s.RemoveTeam("Aces"); err != nil {
		t.Fatalf("RemoveTeam() error: %v", err)
	}
	if len(s.Teams) != 2 {
		t.Errorf("teams = %d after removal, want 2", len(s.Teams))
	}
	if len(s.Matches) != 1 || s.Matches[0].ID != "m2" {
		t.Errorf("matches after removal = %+v, want only m2", s.Matches)
	}
	if err := s.RemoveTeam("Aces"); !errors.Is(err, ErrTeamNotFound) {
		t.Errorf("second RemoveTeam() error = %v, want ErrTeamNotFound", err)
	}
}

func TestForbiddenPairs(t *testing.T) {
	matches := []Match{
		{TeamA: "Aces", TeamB: "Blockers", Completed: true},
		{TeamA: "Diggers", TeamB: "Cobras"},
	}
	forbidden := ForbiddenPairs(matches)

	tests := []struct {
		a, b string
		want bool
	}{
		{"Aces", "Blockers", true},
		{"Blockers", "Aces", true},
		{"Cobras", "Diggers", true},
		{"Aces", "Cobras", false},
	}
	for _, tt := range tests {
		if got := forbidden[NewPairKey(tt.a, tt.b)]; got != tt.want {
			t.Errorf("forbidden[%s,%s] = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNextWeek(t *testing.T) {
	if got := NextWeek(nil); got != 1 {
		t.Errorf("NextWeek(nil) = %d, want 1", got)
	}
	matches := []Match{{Week: 2}, {Week: 5}, {Week: 3}}
	if got := NextWeek(matches); got != 6 {
		t.Errorf("NextWeek() = %d, want 6", got)
	}
}

func TestCurrentWeek(t *testing.T) {
	if got := CurrentWeek(nil); got != 1 {
		t.Errorf("CurrentWeek(nil) = %d, want 1", got)
	}
	matches := []Match{{Week: 2}, {Week: 5}, {Week: 3}}
	if got := CurrentWeek(matches); got != 5 {
		t.Errorf("CurrentWeek() = %d, want 5", got)
	}
}

func TestLeaderboard(t *testing.T) {
	teams := []Team{
		{Name: "Cobras", Rating: 1010, Wins: 2},
		{Name: "Aces", Rating: 1010, Wins: 3},
		{Name: "Blockers", Rating: 1030, Wins: 1},
		{Name: "Rookies", Rating: 1100, Provisional: true},
	}

	board := Leaderboard(teams, false)
	want := []string{"Blockers", "Aces", "Cobras"}
	if len(board) != len(want) {
		t.Fatalf("leaderboard = %d teams, want %d", len(board), len(want))
	}
	for i, name := range want {
		if board[i].Name != name {
			t.Errorf("rank %d = %s, want %s", i+1, board[i].Name, name)
		}
	}

	if all := Leaderboard(teams, true); all[0].Name != "Rookies" {
		t.Errorf("with provisional, rank 1 = %s, want Rookies", all[0].Name)
	}
}
