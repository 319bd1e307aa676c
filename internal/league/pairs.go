package league

import "sort"

// Pair is one proposed pairing produced by the scheduler.
type Pair struct {
	A string
	B string
}

// PairKey is an unordered pair of team names.
type PairKey struct {
	a, b string
}

// NewPairKey normalizes two team names into an unordered key.
func NewPairKey(a, b string) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{a, b}
}

// Key returns the unordered key for the pair.
func (p Pair) Key() PairKey {
	return NewPairKey(p.A, p.B)
}

// Teams returns the two names in sorted order.
func (k PairKey) Teams() (string, string) {
	return k.a, k.b
}

// ForbiddenPairs collects every unordered pairing that already appears in the
// match log, regardless of completion.
func ForbiddenPairs(matches []Match) map[PairKey]bool {
	forbidden := make(map[PairKey]bool, len(matches))
	for _, m := range matches {
		forbidden[NewPairKey(m.TeamA, m.TeamB)] = true
	}
	return forbidden
}

// CurrentWeek returns the latest week in the log, or 1 for an empty log.
func CurrentWeek(matches []Match) int {
	return max(1, NextWeek(matches)-1)
}

// NextWeek returns the week number following the latest week in the log.
func NextWeek(matches []Match) int {
	week := 0
	for _, m := range matches {
		if m.Week > week {
			week = m.Week
		}
	}
	return week + 1
}

// Leaderboard orders teams by rating, then wins, then name. Provisional teams
// are left out unless includeProvisional is set.
func Leaderboard(teams []Team, includeProvisional bool) []Team {
	var board []Team
	for _, t := range teams {
		if t.Provisional && !includeProvisional {
			continue
		}
		board = append(board, t)
	}
	sort.SliceStable(board, func(i, j int) bool {
		if board[i].Rating != board[j].Rating {
			return board[i].Rating > board[j].Rating
		}
		if board[i].Wins != board[j].Wins {
			return board[i].Wins > board[j].Wins
		}
		return board[i].Name < board[j].Name
	})
	return board
}
