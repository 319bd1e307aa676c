// Package manager is the host around the rating and scheduling core. It
// serializes mutations, loads and saves whole snapshots and announces
// results and new weeks.
package manager

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/derekprior/standings/internal/config"
	"github.com/derekprior/standings/internal/league"
	"github.com/derekprior/standings/internal/notify"
	"github.com/derekprior/standings/internal/rating"
	"github.com/derekprior/standings/internal/schedule"
	"github.com/derekprior/standings/internal/store"
	"github.com/derekprior/standings/internal/strategy"
)

var (
	// ErrNoValidSchedule is returned by GenerateWeek when no complete
	// schedule exists. Nothing is persisted in that case.
	ErrNoValidSchedule = schedule.ErrNoValidSchedule
	// ErrNotCompleted is returned when editing a match that has no result yet.
	ErrNotCompleted = errors.New("match is not completed")
	// ErrInvalidSchedule is returned when an imported schedule has errors.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrInvalidName is returned for empty team names.
	ErrInvalidName = errors.New("team name must not be empty")
)

// Manager owns the league state behind a Store. All methods are safe for
// concurrent use; mutations are applied to a freshly loaded snapshot and
// only saved when every step succeeds.
type Manager struct {
	mu       sync.Mutex
	cfg      *config.Config
	store    store.Store
	notifier notify.Notifier
	rng      *rand.Rand
	now      func() time.Time
}

type Option func(*Manager)

// WithNotifier sets where results and new weeks are announced.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithRand sets the random source used by the scheduler.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rng = r }
}

// WithClock overrides time.Now for completion timestamps and backups.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager. The scheduler is seeded from the configuration, or
// from the clock when no seed is set.
func New(cfg *config.Config, st store.Store, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		store:    st,
		notifier: notify.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		seed := cfg.Schedule.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		m.rng = rand.New(rand.NewSource(seed))
	}
	return m
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Snapshot returns the current league state.
func (m *Manager) Snapshot(ctx context.Context) (*league.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

// load reads the league and derives each team's provisional flag from the
// configured placement threshold. The stored flag is never trusted.
func (m *Manager) load(ctx context.Context) (*league.Snapshot, error) {
	snap, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading league: %w", err)
	}
	for i := range snap.Teams {
		snap.Teams[i].UpdateProvisional(m.cfg.Rating.PlacementMatches)
	}
	return snap, nil
}

// update loads the league, applies fn and saves the result. Nothing is
// saved when fn fails.
func (m *Manager) update(ctx context.Context, fn func(*league.Snapshot) error) (*league.Snapshot, error) {
	snap, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(snap); err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("saving league: %w", err)
	}
	return snap, nil
}

// replay rebuilds team state in place from the match log.
func (m *Manager) replay(snap *league.Snapshot) {
	*snap = *rating.Replay(snap, m.cfg.Rating)
}

// AddTeam registers a new active team. A negative rating starts the team at
// the configured base rating.
func (m *Manager) AddTeam(ctx context.Context, name string, startRating int) (league.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return league.Team{}, ErrInvalidName
	}
	if startRating < 0 {
		startRating = m.cfg.Rating.BaseRating
	}
	team := league.NewTeam(name, startRating)
	team.UpdateProvisional(m.cfg.Rating.PlacementMatches)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.update(ctx, func(s *league.Snapshot) error {
		return s.AddTeam(team)
	}); err != nil {
		return league.Team{}, err
	}
	log.Info("Added team.", "team", name, "rating", startRating)
	return team, nil
}

// RemoveTeam deletes a team and every match it played, then rebuilds all
// ratings from the remaining log.
func (m *Manager) RemoveTeam(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int
	_, err := m.update(ctx, func(s *league.Snapshot) error {
		removed = len(s.MatchesFor(name))
		if err := s.RemoveTeam(name); err != nil {
			return err
		}
		m.replay(s)
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("Removed team.", "team", name, "matches_removed", removed)
	return nil
}

// SetActive includes or excludes a team from future scheduling.
func (m *Manager) SetActive(ctx context.Context, name string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.update(ctx, func(s *league.Snapshot) error {
		t, err := s.Team(name)
		if err != nil {
			return err
		}
		t.Active = active
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("Updated team.", "team", name, "active", active)
	return nil
}

// normalize fills in the set tally from the set scores when it was left
// empty.
func normalize(r league.Result) league.Result {
	if r.SetsA == 0 && r.SetsB == 0 && len(r.SetScores) > 0 {
		derived := rating.ResultFromSets(r.SetScores)
		r.SetsA, r.SetsB = derived.SetsA, derived.SetsB
	}
	return r
}

// RecordResult completes a pending match and applies its rating change.
func (m *Manager) RecordResult(ctx context.Context, matchID string, r league.Result) (league.Match, error) {
	r = normalize(r)

	m.mu.Lock()
	defer m.mu.Unlock()
	var recorded league.Match
	_, err := m.update(ctx, func(s *league.Snapshot) error {
		match, err := s.Match(matchID)
		if err != nil {
			return err
		}
		if err := match.Complete(r, m.now()); err != nil {
			return err
		}
		if err := rating.Settle(s, matchID, m.cfg.Rating); err != nil {
			return fmt.Errorf("rating %s: %w", matchID, err)
		}
		settled, err := s.Match(matchID)
		if err != nil {
			return err
		}
		recorded = *settled
		return nil
	})
	if err != nil {
		return league.Match{}, err
	}

	log.Info("Recorded result.", "match", recorded.ID, "team_a", recorded.TeamA, "team_b", recorded.TeamB,
		"score", fmt.Sprintf("%d-%d", r.SetsA, r.SetsB), "delta_a", recorded.DeltaA, "delta_b", recorded.DeltaB)
	m.announceResult(ctx, recorded)
	return recorded, nil
}

// RecordMatch records an ad hoc match that was never scheduled. It is placed
// in the current week, the latest one in the log.
func (m *Manager) RecordMatch(ctx context.Context, teamA, teamB string, r league.Result) (league.Match, error) {
	r = normalize(r)

	m.mu.Lock()
	defer m.mu.Unlock()
	var recorded league.Match
	_, err := m.update(ctx, func(s *league.Snapshot) error {
		for _, name := range []string{teamA, teamB} {
			if _, err := s.Team(name); err != nil {
				return err
			}
		}
		match, err := league.NewMatch(teamA, teamB, league.CurrentWeek(s.Matches))
		if err != nil {
			return err
		}
		if err := match.Complete(r, m.now()); err != nil {
			return err
		}
		s.Matches = append(s.Matches, match)
		if err := rating.Settle(s, match.ID, m.cfg.Rating); err != nil {
			return err
		}
		settled, err := s.Match(match.ID)
		if err != nil {
			return err
		}
		recorded = *settled
		return nil
	})
	if err != nil {
		return league.Match{}, err
	}

	log.Info("Recorded ad hoc match.", "match", recorded.ID, "week", recorded.Week,
		"team_a", teamA, "team_b", teamB, "delta_a", recorded.DeltaA, "delta_b", recorded.DeltaB)
	m.announceResult(ctx, recorded)
	return recorded, nil
}

// EditResult corrects a completed match and rebuilds every rating from the
// log, since later deltas depend on this one.
func (m *Manager) EditResult(ctx context.Context, matchID string, r league.Result) (league.Match, error) {
	r = normalize(r)
	if !r.Decisive() {
		return league.Match{}, fmt.Errorf("editing %s: %w", matchID, league.ErrNoResult)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var edited league.Match
	_, err := m.update(ctx, func(s *league.Snapshot) error {
		match, err := s.Match(matchID)
		if err != nil {
			return err
		}
		if !match.Completed {
			return fmt.Errorf("editing %s: %w", matchID, ErrNotCompleted)
		}
		match.SetResult(r)
		m.replay(s)
		match, err = s.Match(matchID)
		if err != nil {
			return err
		}
		edited = *match
		return nil
	})
	if err != nil {
		return league.Match{}, err
	}
	log.Info("Edited result and recalculated ratings.", "match", matchID,
		"score", fmt.Sprintf("%d-%d", r.SetsA, r.SetsB))
	return edited, nil
}

// DeleteMatch removes a match from the log. Deleting a completed match
// rebuilds every rating.
func (m *Manager) DeleteMatch(ctx context.Context, matchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted league.Match
	_, err := m.update(ctx, func(s *league.Snapshot) error {
		var err error
		deleted, err = s.RemoveMatch(matchID)
		if err != nil {
			return err
		}
		if deleted.Completed {
			m.replay(s)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("Deleted match.", "match", matchID, "completed", deleted.Completed)
	return nil
}

// ScheduleMatch stages a match for a time. A nil time uses the match night
// the season calendar assigns to the match's week.
func (m *Manager) ScheduleMatch(ctx context.Context, matchID string, at *time.Time) (league.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var scheduled league.Match
	_, err := m.update(ctx, func(s *league.Snapshot) error {
		match, err := s.Match(matchID)
		if err != nil {
			return err
		}
		when := at
		if when == nil {
			slot, err := schedule.SlotForWeek(m.cfg.Season, match.Week)
			if err != nil {
				return fmt.Errorf("finding match night for week %d: %w", match.Week, err)
			}
			when = &slot
		}
		if err := match.Schedule(*when); err != nil {
			return err
		}
		scheduled = *match
		return nil
	})
	if err != nil {
		return league.Match{}, err
	}
	log.Info("Scheduled match.", "match", matchID, "at", scheduled.ScheduledAt.Format(time.RFC3339))
	return scheduled, nil
}

// UnscheduleMatch drops a match's staging without touching anything else.
func (m *Manager) UnscheduleMatch(ctx context.Context, matchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.update(ctx, func(s *league.Snapshot) error {
		match, err := s.Match(matchID)
		if err != nil {
			return err
		}
		return match.Unschedule()
	})
	if err != nil {
		return err
	}
	log.Info("Unscheduled match.", "match", matchID)
	return nil
}

// GenerateWeek schedules the next week so every active team gets perTeam
// new opponents. When no such schedule exists the error wraps
// ErrNoValidSchedule and nothing is saved. A perTeam below 1 uses the
// configured matches_per_team.
func (m *Manager) GenerateWeek(ctx context.Context, perTeam int) ([]league.Match, error) {
	if perTeam < 1 {
		perTeam = m.cfg.Schedule.MatchesPerTeam
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var created []league.Match
	var week int
	_, err := m.update(ctx, func(s *league.Snapshot) error {
		pairs, err := schedule.Commit(s.Teams, s.Matches, perTeam, m.scheduleOptions()...)
		if err != nil {
			return err
		}
		week = league.NextWeek(s.Matches)
		for _, p := range pairs {
			match, err := league.NewMatch(p.A, p.B, week)
			if err != nil {
				return err
			}
			created = append(created, match)
		}
		s.Matches = append(s.Matches, created...)
		return nil
	})
	if err != nil {
		log.Warn("Could not generate week.", "per_team", perTeam, "error", err)
		return nil, err
	}

	log.Info("Generated week.", "week", week, "matches", len(created), "per_team", perTeam)
	if err := m.notifier.WeekScheduled(ctx, week, created); err != nil {
		log.Warn("Failed to announce week.", "week", week, "error", err)
	}
	return created, nil
}

// Preview is an advisory schedule. It is never persisted.
type Preview struct {
	Week     int
	Strategy string
	Pairs    []league.Pair
}

// PreviewWeek asks the named strategy for pairings for the next week. The
// proposal respects history but may leave some teams short.
func (m *Manager) PreviewWeek(ctx context.Context, strategyName string, perTeam int) (Preview, error) {
	strat, err := strategy.Get(strategyName)
	if err != nil {
		return Preview{}, err
	}
	if perTeam < 1 {
		perTeam = m.cfg.Schedule.MatchesPerTeam
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	snap, err := m.load(ctx)
	if err != nil {
		return Preview{}, err
	}

	opts := m.scheduleOptions()
	name := strat.Name()
	if auto, ok := strat.(*strategy.Auto); ok {
		p := schedule.NewProblem(snap.Teams, snap.Matches, perTeam)
		name = auto.Pick(p, schedule.NewOptions(opts...)).Name()
	}
	pairs := schedule.Preview(snap.Teams, snap.Matches, perTeam, strat, opts...)
	log.Debug("Previewed week.", "strategy", name, "pairs", len(pairs))
	return Preview{Week: league.NextWeek(snap.Matches), Strategy: name, Pairs: pairs}, nil
}

func (m *Manager) scheduleOptions() []schedule.Option {
	s := m.cfg.Schedule
	return []schedule.Option{
		schedule.WithRand(m.rng),
		schedule.WithMaxSteps(s.MaxSteps),
		schedule.WithBalancedSpread(s.BalancedSpread, s.BalancedMinTeams),
	}
}

// Recalculate rebuilds every team's rating and record from the match log.
func (m *Manager) Recalculate(ctx context.Context) ([]league.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, err := m.update(ctx, func(s *league.Snapshot) error {
		m.replay(s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("Recalculated ratings.", "teams", len(snap.Teams), "matches", len(snap.Matches))
	return snap.Teams, nil
}

// ApplyInactivityPenalties docks every active team that has not played yet
// and returns their names.
func (m *Manager) ApplyInactivityPenalties(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var penalized []string
	_, err := m.update(ctx, func(s *league.Snapshot) error {
		penalized = rating.ApplyInactivityPenalty(s.Teams, m.cfg.Rating)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("Applied inactivity penalties.", "teams", len(penalized), "penalty", m.cfg.Rating.InactivityPenalty)
	return penalized, nil
}

// Leaderboard returns teams by rating, then wins, then name.
func (m *Manager) Leaderboard(ctx context.Context, includeProvisional bool) ([]league.Team, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return league.Leaderboard(snap.Teams, includeProvisional), nil
}

// Matches returns the log, optionally limited to one week.
func (m *Manager) Matches(ctx context.Context, week int) ([]league.Match, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if week < 1 {
		return snap.Matches, nil
	}
	var out []league.Match
	for _, match := range snap.Matches {
		if match.Week == week {
			out = append(out, match)
		}
	}
	return out, nil
}

func (m *Manager) announceResult(ctx context.Context, match league.Match) {
	if err := m.notifier.ResultRecorded(ctx, match); err != nil {
		log.Warn("Failed to announce result.", "match", match.ID, "error", err)
	}
}
