package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/derekprior/standings/internal/config"
	"github.com/derekprior/standings/internal/league"
	"github.com/derekprior/standings/internal/schedule"
)

const (
	StandingsSheet = "Standings"
	MatchesSheet   = "Matches"
	ProposedSheet  = "Proposed Schedule"
)

// ProposedHeaders is the header row of the proposed schedule sheet.
var ProposedHeaders = []string{"Week", "Team A", "Team B"}

// Generate creates a workbook with the standings, the full match log and
// one sheet per team.
func Generate(season config.Season, snap *league.Snapshot) (*excelize.File, error) {
	f := excelize.NewFile()

	f.SetDefaultFont("Arial")

	styles, err := newStyles(f)
	if err != nil {
		return nil, fmt.Errorf("creating styles: %w", err)
	}

	if err := writeStandingsSheet(f, styles, snap); err != nil {
		return nil, fmt.Errorf("writing standings sheet: %w", err)
	}

	dates := weekDates(season, snap.Matches)
	if err := writeMatchesSheet(f, styles, snap, dates); err != nil {
		return nil, fmt.Errorf("writing matches sheet: %w", err)
	}

	if err := writeTeamSheets(f, styles, snap, dates); err != nil {
		return nil, fmt.Errorf("writing team sheets: %w", err)
	}

	f.DeleteSheet("Sheet1")
	return f, nil
}

// WriteProposed creates a workbook holding a single week of proposed
// pairings, in the layout the schedule importer reads back.
func WriteProposed(week int, pairs []league.Pair) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetDefaultFont("Arial")

	styles, err := newStyles(f)
	if err != nil {
		return nil, fmt.Errorf("creating styles: %w", err)
	}

	if _, err := f.NewSheet(ProposedSheet); err != nil {
		return nil, err
	}
	writeHeaders(f, styles, ProposedSheet, ProposedHeaders)
	for i, p := range pairs {
		row := i + 2
		writeRow(f, styles, ProposedSheet, row, week, p.A, p.B)
	}
	setWidths(f, ProposedSheet, map[string]float64{"A": 10, "B": 28, "C": 28})

	f.DeleteSheet("Sheet1")
	return f, nil
}

type styles struct {
	header int
	cell   int
	center int
	win    int
	loss   int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 16, Family: "Arial"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return s, err
	}
	s.cell, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	if err != nil {
		return s, err
	}
	s.center, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 16, Family: "Arial"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return s, err
	}
	s.win, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#C6EFCE"}},
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	if err != nil {
		return s, err
	}
	s.loss, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#FFC7CE"}},
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	return s, err
}

func writeHeaders(f *excelize.File, st styles, sheet string, headers []string) {
	for i, h := range headers {
		f.SetCellValue(sheet, cellRef(i+1, 1), h)
	}
	f.SetCellStyle(sheet, cellRef(1, 1), cellRef(len(headers), 1), st.header)
	f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeRow(f *excelize.File, st styles, sheet string, row int, values ...any) {
	for i, v := range values {
		f.SetCellValue(sheet, cellRef(i+1, row), v)
	}
	f.SetCellStyle(sheet, cellRef(1, row), cellRef(len(values), row), st.cell)
}

func setWidths(f *excelize.File, sheet string, widths map[string]float64) {
	for col, w := range widths {
		f.SetColWidth(sheet, col, col, w)
	}
}

func writeStandingsSheet(f *excelize.File, st styles, snap *league.Snapshot) error {
	sheet := StandingsSheet
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Rank", "Team", "Rating", "W", "L", "Played", "Status"}
	writeHeaders(f, st, sheet, headers)

	for i, t := range league.Leaderboard(snap.Teams, true) {
		status := "Active"
		switch {
		case !t.Active:
			status = "Inactive"
		case t.Provisional:
			status = "Provisional"
		}
		row := i + 2
		writeRow(f, st, sheet, row, i+1, t.Name, t.Rating, t.Wins, t.Losses, t.MatchesPlayed, status)
		f.SetCellStyle(sheet, cellRef(3, row), cellRef(6, row), st.center)
	}

	setWidths(f, sheet, map[string]float64{"A": 8, "B": 28, "C": 12, "D": 8, "E": 8, "F": 10, "G": 16})
	return nil
}

func writeMatchesSheet(f *excelize.File, st styles, snap *league.Snapshot, dates map[int]time.Time) error {
	sheet := MatchesSheet
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Week", "Date", "Match", "Team A", "Team B", "Score", "Sets", "Δ A", "Δ B", "State"}
	writeHeaders(f, st, sheet, headers)

	for i, m := range snap.Matches {
		row := i + 2
		writeRow(f, st, sheet, row,
			m.Week, matchDate(m, dates), m.ID, m.TeamA, m.TeamB,
			scoreText(m), strings.Join(m.SetScores, " "),
			deltaValue(m, m.DeltaA), deltaValue(m, m.DeltaB), string(m.State()))
	}

	setWidths(f, sheet, map[string]float64{
		"A": 8, "B": 20, "C": 12, "D": 24, "E": 24, "F": 10, "G": 36, "H": 8, "I": 8, "J": 16,
	})

	// Completed rows stand out from pending ones.
	if len(snap.Matches) > 0 {
		lastRow := len(snap.Matches) + 1
		f.SetConditionalFormat(sheet, fmt.Sprintf("J2:J%d", lastRow), []excelize.ConditionalFormatOptions{
			{
				Type:     "cell",
				Criteria: "==",
				Value:    `"completed"`,
				Format:   &st.win,
			},
		})
	}
	return nil
}

func writeTeamSheets(f *excelize.File, st styles, snap *league.Snapshot, dates map[int]time.Time) error {
	used := map[string]bool{"standings": true, "matches": true, "proposed schedule": true}
	for _, team := range snap.Teams {
		sheet := sheetName(team.Name, used)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("%s: %w", team.Name, err)
		}

		headers := []string{"Week", "Date", "Opponent", "Result", "Sets", "Rating Δ"}
		writeHeaders(f, st, sheet, headers)

		for i, m := range snap.MatchesFor(team.Name) {
			row := i + 2
			result, delta := "", any("")
			if m.Completed && m.Score != nil {
				won, lost, d := m.Score[0], m.Score[1], m.DeltaA
				if m.TeamB == team.Name {
					won, lost, d = m.Score[1], m.Score[0], m.DeltaB
				}
				outcome := "W"
				if won < lost {
					outcome = "L"
				}
				result = fmt.Sprintf("%s %d-%d", outcome, won, lost)
				delta = d
			}
			writeRow(f, st, sheet, row,
				m.Week, matchDate(m, dates), m.Opponent(team.Name), result,
				strings.Join(m.SetScores, " "), delta)
			switch {
			case strings.HasPrefix(result, "W"):
				f.SetCellStyle(sheet, cellRef(4, row), cellRef(4, row), st.win)
			case strings.HasPrefix(result, "L"):
				f.SetCellStyle(sheet, cellRef(4, row), cellRef(4, row), st.loss)
			}
		}

		setWidths(f, sheet, map[string]float64{"A": 8, "B": 20, "C": 24, "D": 12, "E": 36, "F": 12})
	}
	return nil
}

// weekDates places every week of the log on the season calendar. Without a
// configured season no dates are known.
func weekDates(season config.Season, matches []league.Match) map[int]time.Time {
	dates := make(map[int]time.Time)
	weeks := league.NextWeek(matches) - 1
	if weeks < 1 {
		return dates
	}
	slots, err := schedule.GenerateSlots(season, weeks)
	if err != nil {
		return dates
	}
	for _, s := range slots {
		dates[s.Week] = s.At
	}
	return dates
}

func matchDate(m league.Match, dates map[int]time.Time) string {
	if m.ScheduledAt != nil {
		return m.ScheduledAt.Format("01/02/2006 15:04")
	}
	if at, ok := dates[m.Week]; ok {
		return at.Format("01/02/2006")
	}
	return ""
}

func scoreText(m league.Match) string {
	if m.Score == nil {
		return ""
	}
	return fmt.Sprintf("%d-%d", m.Score[0], m.Score[1])
}

func deltaValue(m league.Match, d int) any {
	if !m.Completed {
		return ""
	}
	return d
}

// sheetName makes a team name usable as a sheet name: at most 31
// characters, none of []:*?/\ and unique within the workbook.
func sheetName(name string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, name)
	clean = strings.Trim(clean, "'")
	if clean == "" {
		clean = "Team"
	}
	clean = truncate(clean, 31)

	candidate := clean
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncate(clean, 31-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func cellRef(col, row int) string {
	return fmt.Sprintf("%s%d", colLetter(col), row)
}

func colLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
