package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/derekprior/standings/internal/league"
)

const (
	teamsFile   = "teams.json"
	matchesFile = "matches.json"
)

// JSONStore keeps teams.json and matches.json in a directory.
type JSONStore struct {
	dir        string
	baseRating int
}

func NewJSON(dir string, opts ...Option) *JSONStore {
	o := newOptions(opts...)
	return &JSONStore{dir: dir, baseRating: o.baseRating}
}

// Load reads both files. Missing files are an empty league.
func (s *JSONStore) Load(ctx context.Context) (*league.Snapshot, error) {
	var teams []fileTeam
	if err := readJSON(filepath.Join(s.dir, teamsFile), &teams); err != nil {
		return nil, err
	}
	var matches []fileMatch
	if err := readJSON(filepath.Join(s.dir, matchesFile), &matches); err != nil {
		return nil, err
	}

	snap := &league.Snapshot{}
	for _, t := range teams {
		snap.Teams = append(snap.Teams, t.team(s.baseRating))
	}
	for i, m := range matches {
		match, err := m.match(i)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", matchesFile, err)
		}
		snap.Matches = append(snap.Matches, match)
	}
	log.Debug("Loaded league from JSON.", "dir", s.dir, "teams", len(snap.Teams), "matches", len(snap.Matches))
	return snap, nil
}

// Save writes both files, each replaced atomically.
func (s *JSONStore) Save(ctx context.Context, snap *league.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	teams := snap.Teams
	if teams == nil {
		teams = []league.Team{}
	}
	matches := snap.Matches
	if matches == nil {
		matches = []league.Match{}
	}
	if err := writeJSON(filepath.Join(s.dir, teamsFile), teams); err != nil {
		return err
	}
	return writeJSON(filepath.Join(s.dir, matchesFile), matches)
}

func (s *JSONStore) Close() error { return nil }

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// fileTeam also accepts the older "mmr" key for the rating.
type fileTeam struct {
	Name          string   `json:"name"`
	Rating        *int     `json:"rating"`
	MMR           *int     `json:"mmr"`
	MatchesPlayed int      `json:"matches_played"`
	Wins          int      `json:"wins"`
	Losses        int      `json:"losses"`
	Active        *bool    `json:"active"`
	Provisional   *bool    `json:"provisional"`
	History       []string `json:"history"`
}

// team fills a missing rating with baseRating. Provisional is kept as
// stored; callers re-derive it from the placement threshold.
func (f fileTeam) team(baseRating int) league.Team {
	t := league.Team{
		Name:          f.Name,
		Rating:        baseRating,
		MatchesPlayed: f.MatchesPlayed,
		Wins:          f.Wins,
		Losses:        f.Losses,
		Active:        true,
		Provisional:   true,
		History:       f.History,
	}
	switch {
	case f.Rating != nil:
		t.Rating = *f.Rating
	case f.MMR != nil:
		t.Rating = *f.MMR
	}
	if f.Active != nil {
		t.Active = *f.Active
	}
	if f.Provisional != nil {
		t.Provisional = *f.Provisional
	}
	return t
}

// fileMatch accepts timestamps with or without a zone and score arrays of
// any length.
type fileMatch struct {
	ID          string   `json:"match_id"`
	TeamA       string   `json:"team_a"`
	TeamB       string   `json:"team_b"`
	Week        int      `json:"week"`
	SetScores   []string `json:"set_scores"`
	Score       []int    `json:"score"`
	Completed   bool     `json:"completed"`
	Scheduled   bool     `json:"scheduled"`
	ScheduledAt string   `json:"scheduled_at"`
	Timestamp   string   `json:"timestamp"`
	DeltaA      int      `json:"delta_a"`
	DeltaB      int      `json:"delta_b"`
}

// match converts the i-th stored match. A missing id is derived from the
// match's position and content so it is stable across loads.
func (f fileMatch) match(i int) (league.Match, error) {
	m := league.Match{
		ID:        f.ID,
		TeamA:     f.TeamA,
		TeamB:     f.TeamB,
		Week:      f.Week,
		SetScores: f.SetScores,
		Completed: f.Completed,
		Scheduled: f.Scheduled,
		DeltaA:    f.DeltaA,
		DeltaB:    f.DeltaB,
	}
	if m.ID == "" {
		m.ID = legacyMatchID(i, f)
	}
	if m.Week == 0 {
		m.Week = 1
	}
	if len(f.Score) == 2 {
		m.Score = &[2]int{f.Score[0], f.Score[1]}
	}
	var err error
	if m.ScheduledAt, err = parseTimestamp(f.ScheduledAt); err != nil {
		return m, fmt.Errorf("match %s: %w", m.ID, err)
	}
	if m.CompletedAt, err = parseTimestamp(f.Timestamp); err != nil {
		return m, fmt.Errorf("match %s: %w", m.ID, err)
	}
	return m, nil
}

func legacyMatchID(i int, f fileMatch) string {
	name := fmt.Sprintf("%d/%s/%s/%d/%s", i, f.TeamA, f.TeamB, f.Week, f.Timestamp)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()[:8]
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp %q", s)
}
