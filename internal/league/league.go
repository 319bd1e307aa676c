package league

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTeamNotFound   = errors.New("team not found")
	ErrDuplicateTeam  = errors.New("team already exists")
	ErrMatchNotFound  = errors.New("match not found")
	ErrMatchCompleted = errors.New("match already completed")
	ErrSameTeam       = errors.New("a team cannot play itself")
	ErrNoResult       = errors.New("match has no decisive result")
)

// Team is a league member identified by its unique name.
type Team struct {
	Name          string   `json:"name"`
	Rating        int      `json:"rating"`
	MatchesPlayed int      `json:"matches_played"`
	Wins          int      `json:"wins"`
	Losses        int      `json:"losses"`
	Active        bool     `json:"active"`
	Provisional   bool     `json:"provisional"`
	History       []string `json:"history"`
}

// NewTeam creates an active, provisional team with the given starting rating.
func NewTeam(name string, rating int) Team {
	if rating < 0 {
		rating = 0
	}
	return Team{Name: name, Rating: rating, Active: true, Provisional: true}
}

// UpdateProvisional derives the provisional flag from matches played.
func (t *Team) UpdateProvisional(placementMatches int) {
	t.Provisional = t.MatchesPlayed < placementMatches
}

// State is the lifecycle position of a match.
type State string

const (
	StateUnscheduled State = "unscheduled"
	StateScheduled   State = "scheduled"
	StateCompleted   State = "completed"
)

// Match is a pairing between two teams in a given week.
type Match struct {
	ID          string     `json:"match_id"`
	TeamA       string     `json:"team_a"`
	TeamB       string     `json:"team_b"`
	Week        int        `json:"week"`
	SetScores   []string   `json:"set_scores,omitempty"`
	Score       *[2]int    `json:"score,omitempty"` // sets won by TeamA, TeamB
	Completed   bool       `json:"completed"`
	Scheduled   bool       `json:"scheduled"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CompletedAt *time.Time `json:"timestamp,omitempty"`
	DeltaA      int        `json:"delta_a"`
	DeltaB      int        `json:"delta_b"`
}

// NewMatchID returns a short opaque match identifier.
func NewMatchID() string {
	return uuid.NewString()[:8]
}

// NewMatch creates an unscheduled match between two different teams.
func NewMatch(teamA, teamB string, week int) (Match, error) {
	if teamA == teamB {
		return Match{}, fmt.Errorf("%s vs %s: %w", teamA, teamB, ErrSameTeam)
	}
	return Match{ID: NewMatchID(), TeamA: teamA, TeamB: teamB, Week: week}, nil
}

// State reports where the match is in its lifecycle.
func (m *Match) State() State {
	switch {
	case m.Completed:
		return StateCompleted
	case m.Scheduled:
		return StateScheduled
	default:
		return StateUnscheduled
	}
}

// Involves reports whether the named team plays in this match.
func (m *Match) Involves(team string) bool {
	return m.TeamA == team || m.TeamB == team
}

// Opponent returns the other team in the match.
func (m *Match) Opponent(team string) string {
	if m.TeamA == team {
		return m.TeamB
	}
	return m.TeamA
}

// Schedule stages the match for a given time. Only valid before completion.
func (m *Match) Schedule(at time.Time) error {
	if m.Completed {
		return fmt.Errorf("scheduling %s: %w", m.ID, ErrMatchCompleted)
	}
	m.Scheduled = true
	m.ScheduledAt = &at
	return nil
}

// Unschedule drops the staging flag. Only valid before completion.
func (m *Match) Unschedule() error {
	if m.Completed {
		return fmt.Errorf("unscheduling %s: %w", m.ID, ErrMatchCompleted)
	}
	m.Scheduled = false
	m.ScheduledAt = nil
	return nil
}

// Result is an entered match outcome, oriented as TeamA/TeamB.
type Result struct {
	SetsA     int
	SetsB     int
	SetScores []string
}

// Decisive reports whether one side won more sets than the other.
func (r Result) Decisive() bool {
	return r.SetsA != r.SetsB
}

// Complete moves the match to its terminal state. Completed matches are
// corrected with SetResult followed by a full replay instead.
func (m *Match) Complete(r Result, at time.Time) error {
	if m.Completed {
		return fmt.Errorf("completing %s: %w", m.ID, ErrMatchCompleted)
	}
	if !r.Decisive() {
		return fmt.Errorf("completing %s: %w", m.ID, ErrNoResult)
	}
	m.SetResult(r)
	m.Completed = true
	m.CompletedAt = &at
	return nil
}

// SetResult overwrites the stored result fields without touching state.
func (m *Match) SetResult(r Result) {
	m.Score = &[2]int{r.SetsA, r.SetsB}
	m.SetScores = append([]string(nil), r.SetScores...)
}

// Snapshot is the full in-memory league dataset.
type Snapshot struct {
	Teams   []Team  `json:"teams"`
	Matches []Match `json:"matches"`
}

// Clone returns a deep copy so mutations can be applied all-or-nothing.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Teams:   make([]Team, len(s.Teams)),
		Matches: make([]Match, len(s.Matches)),
	}
	for i, t := range s.Teams {
		t.History = append([]string(nil), t.History...)
		out.Teams[i] = t
	}
	for i, m := range s.Matches {
		m.SetScores = append([]string(nil), m.SetScores...)
		if m.Score != nil {
			score := *m.Score
			m.Score = &score
		}
		if m.ScheduledAt != nil {
			at := *m.ScheduledAt
			m.ScheduledAt = &at
		}
		if m.CompletedAt != nil {
			at := *m.CompletedAt
			m.CompletedAt = &at
		}
		out.Matches[i] = m
	}
	return out
}

// Team returns a pointer into the snapshot for the named team.
func (s *Snapshot) Team(name string) (*Team, error) {
	for i := range s.Teams {
		if s.Teams[i].Name == name {
			return &s.Teams[i], nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrTeamNotFound)
}

// Match returns a pointer into the snapshot for the match with the given id.
func (s *Snapshot) Match(id string) (*Match, error) {
	for i := range s.Matches {
		if s.Matches[i].ID == id {
			return &s.Matches[i], nil
		}
	}
	return nil, fmt.Errorf("%q: %w", id, ErrMatchNotFound)
}

// AddTeam appends a team, rejecting duplicate names.
func (s *Snapshot) AddTeam(t Team) error {
	if _, err := s.Team(t.Name); err == nil {
		return fmt.Errorf("%q: %w", t.Name, ErrDuplicateTeam)
	}
	s.Teams = append(s.Teams, t)
	return nil
}

// RemoveTeam drops a team and every match it appears in.
func (s *Snapshot) RemoveTeam(name string) error {
	idx := -1
	for i := range s.Teams {
		if s.Teams[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%q: %w", name, ErrTeamNotFound)
	}
	s.Teams = append(s.Teams[:idx], s.Teams[idx+1:]...)

	kept := s.Matches[:0]
	for _, m := range s.Matches {
		if !m.Involves(name) {
			kept = append(kept, m)
		}
	}
	s.Matches = kept
	return nil
}

// RemoveMatch drops the match with the given id and returns it.
func (s *Snapshot) RemoveMatch(id string) (Match, error) {
	for i, m := range s.Matches {
		if m.ID == id {
			s.Matches = append(s.Matches[:i], s.Matches[i+1:]...)
			return m, nil
		}
	}
	return Match{}, fmt.Errorf("%q: %w", id, ErrMatchNotFound)
}

// ActiveTeams returns the teams eligible for scheduling.
func (s *Snapshot) ActiveTeams() []Team {
	var active []Team
	for _, t := range s.Teams {
		if t.Active {
			active = append(active, t)
		}
	}
	return active
}

// MatchesFor returns the matches a team appears in, in log order.
func (s *Snapshot) MatchesFor(team string) []Match {
	var out []Match
	for _, m := range s.Matches {
		if m.Involves(team) {
			out = append(out, m)
		}
	}
	return out
}
