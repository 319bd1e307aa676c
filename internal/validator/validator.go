package validator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/derekprior/standings/internal/excel"
	"github.com/derekprior/standings/internal/league"
)

// Violation represents a constraint violation found during validation.
type Violation struct {
	Row     int    // spreadsheet row, 0 when the violation is about a team
	Type    string // "error" or "warning"
	Message string
}

// Proposed is one pairing read from a proposed schedule sheet.
type Proposed struct {
	Row   int
	Week  int
	TeamA string
	TeamB string
}

// Validate reads a proposed schedule workbook and checks it against the
// league. Rows come back alongside the violations so a clean file can be
// imported without reading it twice.
func Validate(snap *league.Snapshot, perTeam int, path string) ([]Proposed, []Violation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	rows, violations, err := ReadProposed(f, league.NextWeek(snap.Matches))
	if err != nil {
		return nil, nil, fmt.Errorf("reading proposed schedule: %w", err)
	}

	violations = append(violations, Check(snap, perTeam, rows)...)
	return rows, violations, nil
}

// HasErrors reports whether any violation is an error.
func HasErrors(violations []Violation) bool {
	for _, v := range violations {
		if v.Type == "error" {
			return true
		}
	}
	return false
}

// ReadProposed parses the proposed schedule sheet. A blank week cell means
// defaultWeek. Rows that cannot be read are reported as errors and skipped.
func ReadProposed(f *excelize.File, defaultWeek int) ([]Proposed, []Violation, error) {
	rows, err := f.GetRows(excel.ProposedSheet)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", excel.ProposedSheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", excel.ProposedSheet)
	}

	var out []Proposed
	var violations []Violation
	for i, row := range rows {
		if i == 0 {
			continue
		}
		rowNum := i + 1
		cells := make([]string, 3)
		for c := range cells {
			if c < len(row) {
				cells[c] = strings.TrimSpace(row[c])
			}
		}
		if cells[0] == "" && cells[1] == "" && cells[2] == "" {
			continue
		}

		week := defaultWeek
		if cells[0] != "" {
			week, err = strconv.Atoi(cells[0])
			if err != nil || week < 1 {
				violations = append(violations, Violation{
					Row:     rowNum,
					Type:    "error",
					Message: fmt.Sprintf("invalid week %q", cells[0]),
				})
				continue
			}
		}
		if cells[1] == "" || cells[2] == "" {
			violations = append(violations, Violation{
				Row:     rowNum,
				Type:    "error",
				Message: "both Team A and Team B are required",
			})
			continue
		}
		out = append(out, Proposed{Row: rowNum, Week: week, TeamA: cells[1], TeamB: cells[2]})
	}
	return out, violations, nil
}

// Check validates proposed pairings against the league: both teams must
// exist and be active, the pairing must be new, and no team may exceed
// perTeam matches in the file.
func Check(snap *league.Snapshot, perTeam int, rows []Proposed) []Violation {
	var violations []Violation
	violations = append(violations, checkTeams(snap, rows)...)
	violations = append(violations, checkPairs(snap, rows)...)
	violations = append(violations, checkCounts(snap, perTeam, rows)...)
	return violations
}

func checkTeams(snap *league.Snapshot, rows []Proposed) []Violation {
	var violations []Violation
	for _, r := range rows {
		for _, name := range []string{r.TeamA, r.TeamB} {
			team, err := snap.Team(name)
			if err != nil {
				violations = append(violations, Violation{
					Row:     r.Row,
					Type:    "error",
					Message: fmt.Sprintf("unknown team %s", name),
				})
				continue
			}
			if !team.Active {
				violations = append(violations, Violation{
					Row:     r.Row,
					Type:    "error",
					Message: fmt.Sprintf("%s is inactive", name),
				})
			}
		}
	}
	return violations
}

func checkPairs(snap *league.Snapshot, rows []Proposed) []Violation {
	history := league.ForbiddenPairs(snap.Matches)
	seen := make(map[league.PairKey]int)

	var violations []Violation
	for _, r := range rows {
		if r.TeamA == r.TeamB {
			violations = append(violations, Violation{
				Row:     r.Row,
				Type:    "error",
				Message: fmt.Sprintf("%s is paired with itself", r.TeamA),
			})
			continue
		}
		key := league.NewPairKey(r.TeamA, r.TeamB)
		if first, ok := seen[key]; ok {
			violations = append(violations, Violation{
				Row:     r.Row,
				Type:    "error",
				Message: fmt.Sprintf("%s vs %s already appears on row %d", r.TeamA, r.TeamB, first),
			})
			continue
		}
		seen[key] = r.Row
		if history[key] {
			violations = append(violations, Violation{
				Row:     r.Row,
				Type:    "error",
				Message: fmt.Sprintf("%s vs %s is a rematch", r.TeamA, r.TeamB),
			})
		}
	}
	return violations
}

func checkCounts(snap *league.Snapshot, perTeam int, rows []Proposed) []Violation {
	counts := make(map[string]int)
	for _, r := range rows {
		if r.TeamA == r.TeamB {
			continue
		}
		counts[r.TeamA]++
		counts[r.TeamB]++
	}

	var violations []Violation
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if counts[name] > perTeam {
			violations = append(violations, Violation{
				Type:    "error",
				Message: fmt.Sprintf("%s plays %d matches (max %d)", name, counts[name], perTeam),
			})
		}
	}

	for _, t := range snap.ActiveTeams() {
		if n := counts[t.Name]; n < perTeam {
			violations = append(violations, Violation{
				Type:    "warning",
				Message: fmt.Sprintf("%s plays %d matches (expected %d)", t.Name, n, perTeam),
			})
		}
	}
	return violations
}
