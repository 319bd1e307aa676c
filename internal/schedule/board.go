package schedule

import "github.com/derekprior/standings/internal/league"

// Board tracks a schedule under construction: remaining capacity per team
// and the pairs chosen so far. Teams are addressed by their index in the
// Problem.
type Board struct {
	p        Problem
	capacity []int
	assigned []int
	allowed  [][]bool // not self, not forbidden by history
	paired   [][]bool
	pairs    [][2]int
}

// NewBoard starts an empty board with every team needing PerTeam matches.
func (p Problem) NewBoard() *Board {
	n := len(p.Teams)
	b := &Board{
		p:        p,
		capacity: make([]int, n),
		assigned: make([]int, n),
		allowed:  make([][]bool, n),
		paired:   make([][]bool, n),
	}
	for i := range p.Teams {
		b.capacity[i] = p.PerTeam
		b.allowed[i] = make([]bool, n)
		b.paired[i] = make([]bool, n)
		for j := range p.Teams {
			if i == j {
				continue
			}
			b.allowed[i][j] = !p.Forbidden[league.NewPairKey(p.Teams[i].Name, p.Teams[j].Name)]
		}
	}
	return b
}

// Capacity is how many more matches team needs.
func (b *Board) Capacity(team int) int {
	return b.capacity[team]
}

// Assigned is how many matches team has on the board.
func (b *Board) Assigned(team int) int {
	return b.assigned[team]
}

// Len is the number of pairs on the board.
func (b *Board) Len() int {
	return len(b.pairs)
}

// Legal reports whether a and b can still be paired.
func (b *Board) Legal(x, y int) bool {
	return x != y && b.capacity[x] > 0 && b.capacity[y] > 0 && b.allowed[x][y] && !b.paired[x][y]
}

// Candidates lists the teams team can still be paired with, in team order.
func (b *Board) Candidates(team int) []int {
	var out []int
	for other := range b.p.Teams {
		if b.Legal(team, other) {
			out = append(out, other)
		}
	}
	return out
}

// LegalCount is len(Candidates(team)) without the allocation.
func (b *Board) LegalCount(team int) int {
	n := 0
	for other := range b.p.Teams {
		if b.Legal(team, other) {
			n++
		}
	}
	return n
}

// MostConstrained picks the team that needs the most matches, breaking ties
// by fewest legal opponents and then by team order. It returns -1 when no
// team has capacity left.
func (b *Board) MostConstrained() int {
	best, bestLegal := -1, 0
	for t, c := range b.capacity {
		if c <= 0 {
			continue
		}
		legal := b.LegalCount(t)
		if best < 0 || c > b.capacity[best] || (c == b.capacity[best] && legal < bestLegal) {
			best, bestLegal = t, legal
		}
	}
	return best
}

// Link puts the pair on the board.
func (b *Board) Link(x, y int) {
	b.pairs = append(b.pairs, [2]int{x, y})
	b.paired[x][y], b.paired[y][x] = true, true
	b.capacity[x]--
	b.capacity[y]--
	b.assigned[x]++
	b.assigned[y]++
}

// Unlink removes the most recently linked pair, which must be (x, y).
func (b *Board) Unlink(x, y int) {
	b.pairs = b.pairs[:len(b.pairs)-1]
	b.paired[x][y], b.paired[y][x] = false, false
	b.capacity[x]++
	b.capacity[y]++
	b.assigned[x]--
	b.assigned[y]--
}

// Pairs returns the board's pairs by team name.
func (b *Board) Pairs() []league.Pair {
	out := make([]league.Pair, len(b.pairs))
	for i, pr := range b.pairs {
		out[i] = league.Pair{A: b.p.Teams[pr[0]].Name, B: b.p.Teams[pr[1]].Name}
	}
	return out
}
