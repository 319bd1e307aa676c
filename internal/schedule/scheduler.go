// Package schedule pairs teams for a league week. Commit produces a complete
// schedule or nothing; Preview hands the problem to a Strategy that may
// return a partial proposal.
package schedule

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/derekprior/standings/internal/league"
)

var (
	// ErrNoValidSchedule is returned when no complete schedule exists.
	ErrNoValidSchedule = errors.New("no valid schedule")
	// ErrStepLimit is returned when the search gives up before finishing.
	ErrStepLimit = errors.New("search step limit reached")
)

// DefaultMaxSteps bounds the backtracking search when no limit is given.
const DefaultMaxSteps = 2_000_000

// Options tune a scheduling run.
type Options struct {
	Rand             *rand.Rand
	MaxSteps         int
	BalancedSpread   int
	BalancedMinTeams int
}

type Option func(*Options)

// WithRand injects the random source used for candidate ordering.
func WithRand(r *rand.Rand) Option {
	return func(o *Options) { o.Rand = r }
}

// WithMaxSteps caps the number of search nodes expanded. Zero means no cap.
func WithMaxSteps(n int) Option {
	return func(o *Options) { o.MaxSteps = n }
}

// WithBalancedSpread sets when the automatic preview picks the snake draft:
// a rating spread of at most points among at least minTeams teams.
func WithBalancedSpread(points, minTeams int) Option {
	return func(o *Options) {
		o.BalancedSpread = points
		o.BalancedMinTeams = minTeams
	}
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		MaxSteps:         DefaultMaxSteps,
		BalancedSpread:   100,
		BalancedMinTeams: 4,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}

// Problem is one week's pairing request: the active roster, the pairs that
// may never be scheduled and how many matches each team needs.
type Problem struct {
	Teams     []league.Team
	Forbidden map[league.PairKey]bool
	PerTeam   int
}

// NewProblem keeps only the active teams and forbids every pairing already
// present in history.
func NewProblem(teams []league.Team, history []league.Match, perTeam int) Problem {
	var active []league.Team
	for _, t := range teams {
		if t.Active {
			active = append(active, t)
		}
	}
	return Problem{
		Teams:     active,
		Forbidden: league.ForbiddenPairs(history),
		PerTeam:   perTeam,
	}
}

// Degree is the total number of match slots to fill: teams times matches.
func (p Problem) Degree() int {
	return len(p.Teams) * p.PerTeam
}

// Target is the number of pairs a full schedule contains.
func (p Problem) Target() int {
	return p.Degree() / 2
}

// Slack is the number of match slots a preview may leave empty: one when the
// total degree is odd.
func (p Problem) Slack() int {
	return p.Degree() % 2
}

// Check reports why a strict schedule cannot exist, or nil.
func (p Problem) Check() error {
	switch {
	case len(p.Teams) < 2:
		return fmt.Errorf("need at least 2 active teams, have %d: %w", len(p.Teams), ErrNoValidSchedule)
	case p.PerTeam < 1:
		return fmt.Errorf("matches per team must be at least 1, got %d: %w", p.PerTeam, ErrNoValidSchedule)
	case p.Degree()%2 != 0:
		return fmt.Errorf("%d teams playing %d match(es) each leaves one team without an opponent: %w",
			len(p.Teams), p.PerTeam, ErrNoValidSchedule)
	}
	return nil
}

// Spread is the difference between the highest and lowest rating.
func (p Problem) Spread() int {
	if len(p.Teams) == 0 {
		return 0
	}
	lo, hi := p.Teams[0].Rating, p.Teams[0].Rating
	for _, t := range p.Teams[1:] {
		lo = min(lo, t.Rating)
		hi = max(hi, t.Rating)
	}
	return hi - lo
}

// ByRating returns a copy of the problem with teams ordered by rating,
// highest first, then by name.
func (p Problem) ByRating() Problem {
	teams := append([]league.Team(nil), p.Teams...)
	sort.SliceStable(teams, func(i, j int) bool {
		if teams[i].Rating != teams[j].Rating {
			return teams[i].Rating > teams[j].Rating
		}
		return teams[i].Name < teams[j].Name
	})
	p.Teams = teams
	return p
}

// Order ranks the candidate opponents of team in place before they are tried.
type Order func(team int, candidates []int)

// Shuffled tries candidates in random order.
func Shuffled(rng *rand.Rand) Order {
	return func(_ int, candidates []int) {
		rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	}
}

// Nearest tries candidates closest in rating first.
func Nearest(p Problem) Order {
	return func(team int, candidates []int) {
		r := p.Teams[team].Rating
		sort.SliceStable(candidates, func(i, j int) bool {
			return abs(p.Teams[candidates[i]].Rating-r) < abs(p.Teams[candidates[j]].Rating-r)
		})
	}
}

// Search configures one backtracking run.
type Search struct {
	Target   int
	Slack    int
	Order    Order
	MaxSteps int
}

// Solve runs the most-constrained-first backtracking search. It returns
// exactly Target pairs or an error; nothing partial escapes.
func (p Problem) Solve(s Search) ([]league.Pair, error) {
	sv := &solver{
		board:    p.NewBoard(),
		target:   s.Target,
		slack:    s.Slack,
		order:    s.Order,
		maxSteps: s.MaxSteps,
		stuck:    -1,
	}
	if sv.order == nil {
		sv.order = func(int, []int) {}
	}
	if sv.search() {
		return sv.board.Pairs(), nil
	}
	if sv.aborted {
		return nil, fmt.Errorf("gave up after %d steps: %w", sv.steps, ErrStepLimit)
	}
	if sv.stuck >= 0 {
		return nil, fmt.Errorf("no opponents left for %s: %w", p.Teams[sv.stuck].Name, ErrNoValidSchedule)
	}
	return nil, ErrNoValidSchedule
}

type solver struct {
	board    *Board
	target   int
	slack    int
	order    Order
	maxSteps int

	steps   int
	aborted bool
	stuck   int // first team found with no legal opponent
}

func (s *solver) search() bool {
	if s.board.Len() == s.target {
		return true
	}
	s.steps++
	if s.maxSteps > 0 && s.steps > s.maxSteps {
		s.aborted = true
		return false
	}

	team := s.board.MostConstrained()
	if team < 0 {
		return false
	}

	candidates := s.board.Candidates(team)
	if len(candidates) == 0 && s.stuck < 0 {
		s.stuck = team
	}
	s.order(team, candidates)

	for _, opp := range candidates {
		s.board.Link(team, opp)
		if !s.pruned() && s.search() {
			return true
		}
		s.board.Unlink(team, opp)
		if s.aborted {
			return false
		}
	}

	// With slack left, this team may go one match short instead.
	if s.slack > 0 {
		s.slack--
		s.board.capacity[team]--
		if !s.pruned() && s.search() {
			return true
		}
		s.board.capacity[team]++
		s.slack++
	}
	return false
}

// pruned reports whether the remaining teams need more opponents than they
// can still reach, beyond what the slack can absorb.
func (s *solver) pruned() bool {
	short := 0
	for t := range s.board.capacity {
		if c := s.board.capacity[t]; c > 0 {
			if legal := s.board.LegalCount(t); legal < c {
				short += c - legal
				if short > s.slack {
					return true
				}
			}
		}
	}
	return false
}

// Commit returns a complete schedule in which every active team plays
// perTeam new opponents, or nil with an error wrapping ErrNoValidSchedule or
// ErrStepLimit.
func Commit(teams []league.Team, history []league.Match, perTeam int, opts ...Option) ([]league.Pair, error) {
	p := NewProblem(teams, history, perTeam)
	if err := p.Check(); err != nil {
		return nil, err
	}
	o := NewOptions(opts...)
	return p.Solve(Search{
		Target:   p.Target(),
		Order:    Shuffled(o.Rand),
		MaxSteps: o.MaxSteps,
	})
}

// Strategy proposes pairs for a preview. Proposals honor every hard
// constraint but may be incomplete.
type Strategy interface {
	Name() string
	Propose(p Problem, o Options) []league.Pair
}

// Preview asks the strategy for an advisory schedule. An odd total degree
// is tolerated by leaving one slot empty.
func Preview(teams []league.Team, history []league.Match, perTeam int, strategy Strategy, opts ...Option) []league.Pair {
	p := NewProblem(teams, history, perTeam)
	if len(p.Teams) < 2 || p.PerTeam < 1 {
		return nil
	}
	return strategy.Propose(p, NewOptions(opts...))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
