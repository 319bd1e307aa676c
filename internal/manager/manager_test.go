package manager_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derekprior/standings/internal/config"
	"github.com/derekprior/standings/internal/league"
	"github.com/derekprior/standings/internal/manager"
	"github.com/derekprior/standings/internal/notify"
	"github.com/derekprior/standings/internal/rating"
	"github.com/derekprior/standings/internal/schedule"
	"github.com/derekprior/standings/internal/store"
)

var clock = time.Date(2026, 4, 8, 21, 0, 0, 0, time.UTC)

type fixture struct {
	mgr      *manager.Manager
	cfg      *config.Config
	store    *store.JSONStore
	notifier *notify.Mock
	dir      string
}

func setup(t *testing.T, teams ...string) fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Dir = filepath.Join(dir, "data")
	cfg.Storage.BackupDir = filepath.Join(dir, "backups")

	st := store.NewJSON(cfg.Storage.Dir)
	n := notify.NewMock()
	tick := clock
	mgr := manager.New(cfg, st,
		manager.WithNotifier(n),
		manager.WithRand(rand.New(rand.NewSource(7))),
		manager.WithClock(func() time.Time {
			tick = tick.Add(time.Minute)
			return tick
		}),
	)

	for _, name := range teams {
		_, err := mgr.AddTeam(context.Background(), name, -1)
		require.NoError(t, err)
	}
	return fixture{mgr: mgr, cfg: cfg, store: st, notifier: n, dir: dir}
}

func (f fixture) load(t *testing.T) *league.Snapshot {
	t.Helper()
	snap, err := f.store.Load(context.Background())
	require.NoError(t, err)
	return snap
}

func (f fixture) team(t *testing.T, name string) league.Team {
	t.Helper()
	team, err := f.load(t).Team(name)
	require.NoError(t, err)
	return *team
}

func sweep() league.Result {
	return league.Result{SetScores: []string{"25:20", "25:18", "25:15"}}
}

func TestAddTeam(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces")

	team := f.team(t, "Aces")
	assert.Equal(t, 1000, team.Rating)
	assert.True(t, team.Active)
	assert.True(t, team.Provisional)

	t.Run("custom rating", func(t *testing.T) {
		team, err := f.mgr.AddTeam(ctx, "  Blockers ", 1200)
		require.NoError(t, err)
		assert.Equal(t, "Blockers", team.Name)
		assert.Equal(t, 1200, f.team(t, "Blockers").Rating)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := f.mgr.AddTeam(ctx, "Aces", -1)
		assert.ErrorIs(t, err, league.ErrDuplicateTeam)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := f.mgr.AddTeam(ctx, " ", -1)
		assert.ErrorIs(t, err, manager.ErrInvalidName)
	})
}

func TestAddTeamConcurrent(t *testing.T) {
	f := setup(t)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.mgr.AddTeam(context.Background(), fmt.Sprintf("Team %d", i), -1)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Len(t, f.load(t).Teams, 10, "no update is lost")
}

func TestGenerateWeek(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers", "Cobras", "Diggers")

	seen := map[league.PairKey]bool{}
	for week := 1; week <= 3; week++ {
		created, err := f.mgr.GenerateWeek(ctx, 0)
		require.NoError(t, err)
		require.Len(t, created, 2)
		for _, m := range created {
			assert.Equal(t, week, m.Week)
			assert.Equal(t, league.StateUnscheduled, m.State())
			key := league.NewPairKey(m.TeamA, m.TeamB)
			assert.False(t, seen[key], "rematch %s vs %s", m.TeamA, m.TeamB)
			seen[key] = true
		}
	}
	assert.Len(t, f.load(t).Matches, 6)
	require.Len(t, f.notifier.WeekScheduledCalls, 3)
	assert.Equal(t, 3, f.notifier.WeekScheduledCalls[2].Week)

	t.Run("exhausted round robin", func(t *testing.T) {
		created, err := f.mgr.GenerateWeek(ctx, 0)
		assert.ErrorIs(t, err, manager.ErrNoValidSchedule)
		assert.Nil(t, created)
		assert.Len(t, f.load(t).Matches, 6, "nothing persisted")
		assert.Len(t, f.notifier.WeekScheduledCalls, 3)
	})
}

func TestGenerateWeekSkipsInactiveTeams(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers", "Cobras")
	require.NoError(t, f.mgr.SetActive(ctx, "Cobras", false))

	created, err := f.mgr.GenerateWeek(ctx, 1)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.False(t, created[0].Involves("Cobras"))

	t.Run("unknown team", func(t *testing.T) {
		assert.ErrorIs(t, f.mgr.SetActive(ctx, "Zebras", true), league.ErrTeamNotFound)
	})
}

func TestRecordResult(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers")
	created, err := f.mgr.GenerateWeek(ctx, 1)
	require.NoError(t, err)
	id := created[0].ID

	m, err := f.mgr.RecordResult(ctx, id, sweep())
	require.NoError(t, err)

	assert.Equal(t, &[2]int{3, 0}, m.Score, "set tally derived from set scores")
	assert.True(t, m.Completed)
	require.NotNil(t, m.CompletedAt)

	winnerDelta, loserDelta := rating.Deltas(1000, 1000,
		rating.Outcome{SetsWinner: 3, SetsLoser: 0, PointsWinner: 75, PointsLoser: 53}, f.cfg.Rating)
	winner, loser := m.TeamA, m.TeamB
	assert.Equal(t, winnerDelta, m.DeltaA)
	assert.Equal(t, loserDelta, m.DeltaB)
	assert.Equal(t, 1000+winnerDelta, f.team(t, winner).Rating)
	assert.Equal(t, 1000+loserDelta, f.team(t, loser).Rating)
	assert.Equal(t, 1, f.team(t, winner).Wins)
	assert.Len(t, f.team(t, winner).History, 1)

	require.Len(t, f.notifier.ResultRecordedCalls, 1)
	assert.Equal(t, id, f.notifier.ResultRecordedCalls[0].ID)

	t.Run("already completed", func(t *testing.T) {
		_, err := f.mgr.RecordResult(ctx, id, sweep())
		assert.ErrorIs(t, err, league.ErrMatchCompleted)
	})

	t.Run("tie is rejected and nothing saved", func(t *testing.T) {
		snapBefore := f.load(t)
		_, err := f.mgr.RecordMatch(ctx, "Aces", "Blockers", league.Result{SetsA: 1, SetsB: 1})
		assert.ErrorIs(t, err, league.ErrNoResult)
		assert.Equal(t, snapBefore, f.load(t))
	})

	t.Run("unknown match", func(t *testing.T) {
		_, err := f.mgr.RecordResult(ctx, "nope", sweep())
		assert.ErrorIs(t, err, league.ErrMatchNotFound)
	})
}

func TestRecordResultNotificationFailure(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers")
	f.notifier.Err = errors.New("webhook down")

	m, err := f.mgr.RecordMatch(ctx, "Aces", "Blockers", sweep())
	require.NoError(t, err, "a failed announcement never fails the mutation")
	assert.True(t, m.Completed)
	assert.Len(t, f.load(t).Matches, 1)
}

func TestRecordMatchCloseLoss(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers")

	m, err := f.mgr.RecordMatch(ctx, "Aces", "Blockers", league.Result{SetsA: 3, SetsB: 2})
	require.NoError(t, err)
	assert.Equal(t, 11, m.DeltaA)
	assert.Equal(t, 2, m.DeltaB, "a close loss between even teams still earns a share")
}

func TestRecordMatch(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers", "Cobras")
	_, err := f.mgr.GenerateWeek(ctx, 1)
	require.Error(t, err, "three teams with one match each cannot be paired")

	m, err := f.mgr.RecordMatch(ctx, "Cobras", "Aces", league.Result{SetsA: 3, SetsB: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Week)
	assert.Greater(t, m.DeltaA, 0)
	assert.Less(t, m.DeltaB, 0)

	m2, err := f.mgr.RecordMatch(ctx, "Blockers", "Aces", league.Result{SetsA: 0, SetsB: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, m2.Week, "ad hoc matches join the current week")

	t.Run("unknown team", func(t *testing.T) {
		_, err := f.mgr.RecordMatch(ctx, "Aces", "Zebras", sweep())
		assert.ErrorIs(t, err, league.ErrTeamNotFound)
	})

	t.Run("same team", func(t *testing.T) {
		_, err := f.mgr.RecordMatch(ctx, "Aces", "Aces", sweep())
		assert.ErrorIs(t, err, league.ErrSameTeam)
	})
}

// assertRecalculateIsNoOp checks that the stored ratings and deltas already
// equal a full rebuild from the log.
func assertRecalculateIsNoOp(t *testing.T, f fixture) {
	t.Helper()
	before := f.load(t)
	_, err := f.mgr.Recalculate(context.Background())
	require.NoError(t, err)
	after := f.load(t)

	require.Len(t, after.Teams, len(before.Teams))
	for i, team := range before.Teams {
		assert.Equal(t, team.Rating, after.Teams[i].Rating, team.Name)
		assert.Equal(t, team.Wins, after.Teams[i].Wins, team.Name)
		assert.Equal(t, team.Losses, after.Teams[i].Losses, team.Name)
	}
	require.Len(t, after.Matches, len(before.Matches))
	for i, m := range before.Matches {
		assert.Equal(t, [2]int{m.DeltaA, m.DeltaB}, [2]int{after.Matches[i].DeltaA, after.Matches[i].DeltaB}, m.ID)
	}
}

func TestAdHocMatchDuringScheduledWeek(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers", "Cobras", "Diggers")
	created, err := f.mgr.GenerateWeek(ctx, 1)
	require.NoError(t, err)
	require.Len(t, created, 2)

	paired := league.ForbiddenPairs(created)
	var a, b string
	for _, x := range []string{"Aces", "Blockers", "Cobras", "Diggers"} {
		for _, y := range []string{"Aces", "Blockers", "Cobras", "Diggers"} {
			if a == "" && x < y && !paired[league.NewPairKey(x, y)] {
				a, b = x, y
			}
		}
	}
	require.NotEmpty(t, a)

	adhoc, err := f.mgr.RecordMatch(ctx, a, b, sweep())
	require.NoError(t, err)
	assert.Equal(t, 1, adhoc.Week)

	_, err = f.mgr.RecordResult(ctx, created[0].ID, league.Result{SetsA: 3, SetsB: 1})
	require.NoError(t, err)
	_, err = f.mgr.RecordResult(ctx, created[1].ID, sweep())
	require.NoError(t, err)

	assertRecalculateIsNoOp(t, f)
}

func TestLateResultFromEarlierWeek(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers", "Cobras", "Diggers")
	week1, err := f.mgr.GenerateWeek(ctx, 1)
	require.NoError(t, err)
	week2, err := f.mgr.GenerateWeek(ctx, 1)
	require.NoError(t, err)

	_, err = f.mgr.RecordResult(ctx, week2[0].ID, league.Result{SetsA: 3, SetsB: 2})
	require.NoError(t, err)
	late, err := f.mgr.RecordResult(ctx, week1[0].ID, sweep())
	require.NoError(t, err)

	stored, err := f.load(t).Match(late.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.DeltaA, late.DeltaA, "returned match carries the stored deltas")
	completed := 0
	for _, m := range f.load(t).MatchesFor(late.TeamA) {
		if m.Completed {
			completed++
		}
	}
	assert.Len(t, f.team(t, late.TeamA).History, completed, "one history line per result")

	assertRecalculateIsNoOp(t, f)
}

func TestProvisionalFollowsPlacementThreshold(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	require.NoError(t, os.MkdirAll(f.cfg.Storage.Dir, 0o755))
	legacy := `[{"name": "Vets", "mmr": 1040, "matches_played": 6, "wins": 4, "losses": 2, "active": true}]`
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.Storage.Dir, "teams.json"), []byte(legacy), 0o644))

	board, err := f.mgr.Leaderboard(ctx, false)
	require.NoError(t, err)
	require.Len(t, board, 1, "six matches is past placement even without a stored flag")
	assert.Equal(t, "Vets", board[0].Name)
	assert.False(t, board[0].Provisional)

	f.cfg.Rating.PlacementMatches = 10
	board, err = f.mgr.Leaderboard(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, board, "raising the threshold applies to existing teams")

	snap, err := f.mgr.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Teams[0].Provisional)

	t.Run("derived flag is saved", func(t *testing.T) {
		f.cfg.Rating.PlacementMatches = 3
		_, err := f.mgr.AddTeam(ctx, "Rookies", -1)
		require.NoError(t, err)
		assert.False(t, f.team(t, "Vets").Provisional)
		assert.True(t, f.team(t, "Rookies").Provisional)
	})
}

func TestEditResultReplays(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers", "Cobras", "Diggers")

	first, err := f.mgr.RecordMatch(ctx, "Aces", "Blockers", sweep())
	require.NoError(t, err)
	_, err = f.mgr.RecordMatch(ctx, "Aces", "Cobras", league.Result{SetsA: 3, SetsB: 1})
	require.NoError(t, err)

	edited, err := f.mgr.EditResult(ctx, first.ID, league.Result{SetsA: 1, SetsB: 3})
	require.NoError(t, err)
	assert.Equal(t, &[2]int{1, 3}, edited.Score)
	assert.Less(t, edited.DeltaA, 0)

	snap := f.load(t)
	want := rating.Replay(snap, f.cfg.Rating)
	for i := range want.Teams {
		assert.Equal(t, want.Teams[i].Rating, snap.Teams[i].Rating, want.Teams[i].Name)
		assert.Equal(t, want.Teams[i].Wins, snap.Teams[i].Wins, want.Teams[i].Name)
	}
	aces := f.team(t, "Aces")
	assert.Equal(t, 1, aces.Wins)
	assert.Equal(t, 1, aces.Losses)

	t.Run("pending match", func(t *testing.T) {
		created, err := f.mgr.GenerateWeek(ctx, 1)
		require.NoError(t, err)
		_, err = f.mgr.EditResult(ctx, created[0].ID, sweep())
		assert.ErrorIs(t, err, manager.ErrNotCompleted)
	})

	t.Run("indecisive", func(t *testing.T) {
		_, err := f.mgr.EditResult(ctx, first.ID, league.Result{SetsA: 2, SetsB: 2})
		assert.ErrorIs(t, err, league.ErrNoResult)
	})
}

func TestDeleteMatch(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers")

	m, err := f.mgr.RecordMatch(ctx, "Aces", "Blockers", sweep())
	require.NoError(t, err)
	require.NoError(t, f.mgr.DeleteMatch(ctx, m.ID))

	aces := f.team(t, "Aces")
	assert.Equal(t, 1000, aces.Rating)
	assert.Zero(t, aces.MatchesPlayed)
	assert.Empty(t, f.load(t).Matches)

	assert.ErrorIs(t, f.mgr.DeleteMatch(ctx, m.ID), league.ErrMatchNotFound)
}

func TestRemoveTeam(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers", "Cobras")

	_, err := f.mgr.RecordMatch(ctx, "Aces", "Blockers", sweep())
	require.NoError(t, err)
	_, err = f.mgr.RecordMatch(ctx, "Cobras", "Blockers", sweep())
	require.NoError(t, err)

	require.NoError(t, f.mgr.RemoveTeam(ctx, "Aces"))

	snap := f.load(t)
	assert.Len(t, snap.Teams, 2)
	require.Len(t, snap.Matches, 1)
	blockers := f.team(t, "Blockers")
	assert.Equal(t, 1, blockers.MatchesPlayed, "record rebuilt without the removed team")

	assert.ErrorIs(t, f.mgr.RemoveTeam(ctx, "Aces"), league.ErrTeamNotFound)
}

func TestScheduleMatch(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers")
	created, err := f.mgr.GenerateWeek(ctx, 1)
	require.NoError(t, err)
	id := created[0].ID

	t.Run("no season configured", func(t *testing.T) {
		_, err := f.mgr.ScheduleMatch(ctx, id, nil)
		assert.ErrorIs(t, err, schedule.ErrNoSeason)
	})

	t.Run("explicit time", func(t *testing.T) {
		at := time.Date(2026, 4, 9, 18, 30, 0, 0, time.UTC)
		m, err := f.mgr.ScheduleMatch(ctx, id, &at)
		require.NoError(t, err)
		assert.Equal(t, league.StateScheduled, m.State())
		assert.True(t, at.Equal(*m.ScheduledAt))
	})

	t.Run("season calendar", func(t *testing.T) {
		f.cfg.Season.StartDate = config.Date{Time: time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)}
		m, err := f.mgr.ScheduleMatch(ctx, id, nil)
		require.NoError(t, err)
		assert.Equal(t, time.Wednesday, m.ScheduledAt.Weekday())
		assert.Equal(t, 8, m.ScheduledAt.Day())
		assert.Equal(t, 19, m.ScheduledAt.Hour())
	})

	t.Run("unschedule", func(t *testing.T) {
		require.NoError(t, f.mgr.UnscheduleMatch(ctx, id))
		m, err := f.load(t).Match(id)
		require.NoError(t, err)
		assert.Equal(t, league.StateUnscheduled, m.State())
		assert.Nil(t, m.ScheduledAt)
	})

	t.Run("completed matches are frozen", func(t *testing.T) {
		_, err := f.mgr.RecordResult(ctx, id, sweep())
		require.NoError(t, err)
		assert.ErrorIs(t, f.mgr.UnscheduleMatch(ctx, id), league.ErrMatchCompleted)
	})
}

func TestPreviewWeek(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers", "Cobras", "Diggers")

	p, err := f.mgr.PreviewWeek(ctx, "auto", 1)
	require.NoError(t, err)
	assert.Equal(t, "balanced", p.Strategy)
	assert.Equal(t, 1, p.Week)
	assert.Len(t, p.Pairs, 2)
	assert.Empty(t, f.load(t).Matches, "previews are never saved")

	p, err = f.mgr.PreviewWeek(ctx, "proximity", 1)
	require.NoError(t, err)
	assert.Equal(t, "proximity", p.Strategy)

	_, err = f.mgr.PreviewWeek(ctx, "random", 1)
	assert.Error(t, err)
}

func TestApplyInactivityPenalties(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers", "Cobras", "Diggers")
	require.NoError(t, f.mgr.SetActive(ctx, "Diggers", false))
	_, err := f.mgr.RecordMatch(ctx, "Aces", "Blockers", sweep())
	require.NoError(t, err)

	penalized, err := f.mgr.ApplyInactivityPenalties(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cobras"}, penalized)
	assert.Equal(t, 990, f.team(t, "Cobras").Rating)
	assert.Equal(t, 1000, f.team(t, "Diggers").Rating)

	teams, err := f.mgr.Recalculate(ctx)
	require.NoError(t, err)
	assert.Len(t, teams, 4)
	assert.Equal(t, 1000, f.team(t, "Cobras").Rating, "replay starts every team from the base rating")
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers")
	f.cfg.Rating.PlacementMatches = 1
	_, err := f.mgr.AddTeam(ctx, "Cobras", -1)
	require.NoError(t, err)
	_, err = f.mgr.RecordMatch(ctx, "Blockers", "Aces", sweep())
	require.NoError(t, err)

	board, err := f.mgr.Leaderboard(ctx, false)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "Blockers", board[0].Name)
	assert.Equal(t, "Aces", board[1].Name)

	all, err := f.mgr.Leaderboard(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMatches(t *testing.T) {
	ctx := context.Background()
	f := setup(t, "Aces", "Blockers", "Cobras", "Diggers")
	_, err := f.mgr.GenerateWeek(ctx, 1)
	require.NoError(t, err)
	_, err = f.mgr.GenerateWeek(ctx, 1)
	require.NoError(t, err)

	all, err := f.mgr.Matches(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	week2, err := f.mgr.Matches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, week2, 2)
	assert.Equal(t, 2, week2[0].Week)
}
