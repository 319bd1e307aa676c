// Package rating converts match outcomes into team rating changes and
// replays a match log to rebuild team state from scratch.
package rating

import (
	"fmt"
	"math"

	"github.com/derekprior/standings/internal/config"
	"github.com/derekprior/standings/internal/league"
)

// Outcome is a match result oriented from the winner's side.
type Outcome struct {
	SetsWinner   int
	SetsLoser    int
	PointsWinner int
	PointsLoser  int
}

// Expectation is the logistic win expectation of a team rated r against an
// opponent rated opp.
func Expectation(r, opp int) float64 {
	return 1 / (1 + math.Pow(10, float64(opp-r)/400))
}

// Deltas computes the rating change for the winner and the loser. The scheme
// is not zero-sum: the loser's penalty is softened in close matches.
func Deltas(winnerRating, loserRating int, o Outcome, cfg config.Rating) (int, int) {
	e := Expectation(winnerRating, loserRating)

	winnerBase := cfg.KFactor * (1 - e)
	loserBase := cfg.KFactor * (0 - e)

	pointFactor := cfg.PointDiffMultiplier * float64(clamp(o.PointsWinner-o.PointsLoser, 0, cfg.PointDiffCap))
	setBonus := float64(cfg.MarginBonus[config.SetLine{Won: o.SetsWinner, Lost: o.SetsLoser}])

	winnerDelta := int(math.Round(winnerBase + pointFactor + setBonus))
	if winnerDelta < 1 {
		winnerDelta = 1
	}

	closeness := 1 - 2*math.Abs(e-0.5)
	loserDelta := int(math.Round(loserBase*(cfg.LoserFloor+cfg.LoserClosenessWeight*closeness) - pointFactor*cfg.LoserPointOffset))

	if abs(winnerRating-loserRating) <= cfg.CloseMatchRatingGap && o.SetsWinner-o.SetsLoser <= cfg.CloseMatchSetGap {
		if floor := int(math.Round(float64(winnerDelta) * cfg.CloseMatchShare)); floor > loserDelta {
			loserDelta = floor
		}
	}

	return winnerDelta, loserDelta
}

type applyOptions struct {
	history bool
}

// ApplyOption customizes Apply.
type ApplyOption func(*applyOptions)

// WithoutHistory suppresses the per-team history lines. Replay uses it.
func WithoutHistory() ApplyOption {
	return func(o *applyOptions) { o.history = false }
}

// Apply updates both teams with the outcome and returns the deltas it used.
func Apply(winner, loser *league.Team, o Outcome, cfg config.Rating, opts ...ApplyOption) (int, int) {
	options := applyOptions{history: true}
	for _, opt := range opts {
		opt(&options)
	}

	winnerDelta, loserDelta := Deltas(winner.Rating, loser.Rating, o, cfg)

	winner.Rating = max(0, winner.Rating+winnerDelta)
	loser.Rating = max(0, loser.Rating+loserDelta)

	winner.Wins++
	winner.MatchesPlayed++
	loser.Losses++
	loser.MatchesPlayed++

	winner.UpdateProvisional(cfg.PlacementMatches)
	loser.UpdateProvisional(cfg.PlacementMatches)

	if options.history {
		appendHistory(winner, loser, o, winnerDelta, loserDelta)
	}

	return winnerDelta, loserDelta
}

func appendHistory(winner, loser *league.Team, o Outcome, winnerDelta, loserDelta int) {
	winner.History = append(winner.History,
		fmt.Sprintf("Won %d-%d vs %s (%+d)", o.SetsWinner, o.SetsLoser, loser.Name, winnerDelta))
	loser.History = append(loser.History,
		fmt.Sprintf("Lost %d-%d vs %s (%+d)", o.SetsLoser, o.SetsWinner, winner.Name, loserDelta))
}

// ApplyInactivityPenalty docks teams that have not played a match yet and
// returns the names of the penalized teams.
func ApplyInactivityPenalty(teams []league.Team, cfg config.Rating) []string {
	var penalized []string
	for i := range teams {
		t := &teams[i]
		if t.MatchesPlayed > 0 || !t.Active {
			continue
		}
		t.Rating = max(0, t.Rating-cfg.InactivityPenalty)
		t.History = append(t.History, fmt.Sprintf("Inactivity penalty applied: -%d", cfg.InactivityPenalty))
		penalized = append(penalized, t.Name)
	}
	return penalized
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
