// Package strategy holds the preview heuristics for weekly pairings.
package strategy

import (
	"fmt"
	"sort"

	"github.com/derekprior/standings/internal/league"
	"github.com/derekprior/standings/internal/schedule"
)

// Names lists the strategies Get understands.
var Names = []string{"auto", "balanced", "proximity"}

// Get returns a preview Strategy by name.
func Get(name string) (schedule.Strategy, error) {
	switch name {
	case "", "auto":
		return &Auto{}, nil
	case "balanced", "snake":
		return &Balanced{}, nil
	case "proximity":
		return &Proximity{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy: %q", name)
	}
}

// Auto uses Balanced when ratings are close together and the roster is big
// enough for a draft, and Proximity otherwise.
type Auto struct{}

func (s *Auto) Name() string { return "auto" }

// Pick returns the strategy Auto delegates to for this problem.
func (s *Auto) Pick(p schedule.Problem, o schedule.Options) schedule.Strategy {
	if p.Spread() <= o.BalancedSpread && len(p.Teams) >= o.BalancedMinTeams {
		return &Balanced{}
	}
	return &Proximity{}
}

func (s *Auto) Propose(p schedule.Problem, o schedule.Options) []league.Pair {
	return s.Pick(p, o).Propose(p, o)
}

// Balanced drafts pairings snake-style over a shuffled roster, one round
// per match, so every team gets a spread of opponents.
type Balanced struct{}

func (s *Balanced) Name() string { return "balanced" }

func (s *Balanced) Propose(p schedule.Problem, o schedule.Options) []league.Pair {
	board := p.NewBoard()
	target := p.Target()
	order := o.Rand.Perm(len(p.Teams))

	for round := 0; round < p.PerTeam; round++ {
		seq := order
		if round%2 == 1 {
			seq = reversed(order)
		}
		busy := make([]bool, len(p.Teams))
		for i, team := range seq {
			if busy[team] || board.Capacity(team) == 0 {
				continue
			}
			for _, opp := range seq[i+1:] {
				if !busy[opp] && board.Legal(team, opp) {
					board.Link(team, opp)
					busy[team], busy[opp] = true, true
					break
				}
			}
		}
	}

	for board.Len() < target && fillFewest(board, order) {
	}

	if board.Len() < target {
		pairs, err := p.Solve(schedule.Search{
			Target:   target,
			Slack:    p.Slack(),
			Order:    schedule.Shuffled(o.Rand),
			MaxSteps: o.MaxSteps,
		})
		if err == nil {
			return pairs
		}
	}
	return board.Pairs()
}

// fillFewest links the team with the fewest matches so far to the least
// loaded legal opponent. It reports false when no legal pair is left.
func fillFewest(b *schedule.Board, order []int) bool {
	teams := append([]int(nil), order...)
	sort.SliceStable(teams, func(i, j int) bool {
		return b.Assigned(teams[i]) < b.Assigned(teams[j])
	})
	for _, team := range teams {
		if b.Capacity(team) == 0 {
			continue
		}
		for _, opp := range teams {
			if b.Legal(team, opp) {
				b.Link(team, opp)
				return true
			}
		}
	}
	return false
}

func reversed(in []int) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// Proximity pairs teams with the closest-rated legal opponents. When no
// complete schedule exists it returns as many close pairs as it can.
type Proximity struct{}

func (s *Proximity) Name() string { return "proximity" }

func (s *Proximity) Propose(p schedule.Problem, o schedule.Options) []league.Pair {
	q := p.ByRating()
	target := q.Target()
	nearest := schedule.Nearest(q)

	pairs, err := q.Solve(schedule.Search{
		Target:   target,
		Slack:    q.Slack(),
		Order:    nearest,
		MaxSteps: o.MaxSteps,
	})
	if err == nil {
		return pairs
	}

	board := q.NewBoard()
	for progress := true; progress && board.Len() < target; {
		progress = false
		for team := range q.Teams {
			if board.Len() == target {
				break
			}
			candidates := board.Candidates(team)
			if len(candidates) == 0 {
				continue
			}
			nearest(team, candidates)
			board.Link(team, candidates[0])
			progress = true
		}
	}
	return board.Pairs()
}
