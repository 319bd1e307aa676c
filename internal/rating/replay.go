package rating

import (
	"sort"
	"strconv"
	"strings"

	"github.com/derekprior/standings/internal/config"
	"github.com/derekprior/standings/internal/league"
)

// SetTotals is the point and set tally parsed from "X:Y" set scores.
type SetTotals struct {
	PointsA int
	PointsB int
	SetsA   int
	SetsB   int
}

// ParseSetScores sums per-set points for each side. A set string that does not
// parse as two non-negative integers contributes nothing.
func ParseSetScores(sets []string) SetTotals {
	var t SetTotals
	for _, s := range sets {
		a, b, ok := parseSet(s)
		if !ok {
			continue
		}
		t.PointsA += a
		t.PointsB += b
		switch {
		case a > b:
			t.SetsA++
		case b > a:
			t.SetsB++
		}
	}
	return t
}

func parseSet(s string) (int, int, bool) {
	left, right, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, 0, false
	}
	a, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil || a < 0 {
		return 0, 0, false
	}
	b, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil || b < 0 {
		return 0, 0, false
	}
	return a, b, true
}

// ResultFromSets builds a result whose set tally is derived from the set
// scores themselves.
func ResultFromSets(sets []string) league.Result {
	t := ParseSetScores(sets)
	return league.Result{SetsA: t.SetsA, SetsB: t.SetsB, SetScores: sets}
}

// OutcomeFor orients a match result from the winner's side. It reports false
// when the match has no decisive result.
func OutcomeFor(m *league.Match) (winner, loser string, o Outcome, ok bool) {
	if m.Score == nil || m.Score[0] == m.Score[1] {
		return "", "", Outcome{}, false
	}
	totals := ParseSetScores(m.SetScores)
	if m.Score[0] > m.Score[1] {
		return m.TeamA, m.TeamB, Outcome{
			SetsWinner:   m.Score[0],
			SetsLoser:    m.Score[1],
			PointsWinner: totals.PointsA,
			PointsLoser:  totals.PointsB,
		}, true
	}
	return m.TeamB, m.TeamA, Outcome{
		SetsWinner:   m.Score[1],
		SetsLoser:    m.Score[0],
		PointsWinner: totals.PointsB,
		PointsLoser:  totals.PointsA,
	}, true
}

// RecordMatch applies a completed match to the snapshot's teams and stores
// the resulting deltas on the match.
func RecordMatch(s *league.Snapshot, m *league.Match, cfg config.Rating, opts ...ApplyOption) error {
	winnerName, loserName, o, ok := OutcomeFor(m)
	if !ok {
		return league.ErrNoResult
	}
	winner, err := s.Team(winnerName)
	if err != nil {
		return err
	}
	loser, err := s.Team(loserName)
	if err != nil {
		return err
	}
	winnerDelta, loserDelta := Apply(winner, loser, o, cfg, opts...)
	if winnerName == m.TeamA {
		m.DeltaA, m.DeltaB = winnerDelta, loserDelta
	} else {
		m.DeltaA, m.DeltaB = loserDelta, winnerDelta
	}
	return nil
}

// Settle applies a newly completed match. When the match is the last one in
// replay order it is applied incrementally. Otherwise, for example a late
// result from an earlier week, every rating is rebuilt from the log so the
// snapshot matches what Replay produces. Either way both teams get a history
// line with the deltas that were stored on the match.
func Settle(s *league.Snapshot, matchID string, cfg config.Rating) error {
	m, err := s.Match(matchID)
	if err != nil {
		return err
	}
	order := ReplayOrder(s.Matches)
	if len(order) > 0 && &s.Matches[order[len(order)-1]] == m {
		return RecordMatch(s, m, cfg)
	}

	winnerName, loserName, o, ok := OutcomeFor(m)
	if !ok {
		return league.ErrNoResult
	}
	for _, name := range []string{winnerName, loserName} {
		if _, err := s.Team(name); err != nil {
			return err
		}
	}

	*s = *Replay(s, cfg)
	m, err = s.Match(matchID)
	if err != nil {
		return err
	}
	winner, _ := s.Team(winnerName)
	loser, _ := s.Team(loserName)
	winnerDelta, loserDelta := m.DeltaA, m.DeltaB
	if winnerName != m.TeamA {
		winnerDelta, loserDelta = m.DeltaB, m.DeltaA
	}
	appendHistory(winner, loser, o, winnerDelta, loserDelta)
	return nil
}

// ReplayOrder returns the indices of completed matches in replay order: week,
// then completion time, then original log position.
func ReplayOrder(matches []league.Match) []int {
	var idx []int
	for i := range matches {
		if matches[i].Completed {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := matches[idx[i]], matches[idx[j]]
		if a.Week != b.Week {
			return a.Week < b.Week
		}
		switch {
		case a.CompletedAt == nil && b.CompletedAt == nil:
			return false
		case a.CompletedAt == nil:
			return true
		case b.CompletedAt == nil:
			return false
		}
		return a.CompletedAt.Before(*b.CompletedAt)
	})
	return idx
}

// Replay rebuilds all team state from the completed match log. The input is
// not modified. Replaying the same log always yields identical team state.
func Replay(s *league.Snapshot, cfg config.Rating) *league.Snapshot {
	out := s.Clone()
	for i := range out.Teams {
		t := &out.Teams[i]
		t.Rating = cfg.BaseRating
		t.Wins = 0
		t.Losses = 0
		t.MatchesPlayed = 0
		t.UpdateProvisional(cfg.PlacementMatches)
	}
	for i := range out.Matches {
		out.Matches[i].DeltaA = 0
		out.Matches[i].DeltaB = 0
	}

	for _, i := range ReplayOrder(out.Matches) {
		// Matches without a decisive result or with unknown teams are skipped.
		_ = RecordMatch(out, &out.Matches[i], cfg, WithoutHistory())
	}
	return out
}
