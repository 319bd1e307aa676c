package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/derekprior/standings/internal/league"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLiteStore keeps the league in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens dsn and migrates it to the latest schema.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	log.Info("Connecting to database.", "dsn", dsn)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	if err := optimizeSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{log.WithPrefix("goose")})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func optimizeSQLite(ctx context.Context, db *sql.DB) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"busy_timeout", "5000"},
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("failed to set PRAGMA %s: %w", p.name, err)
		}
	}
	return nil
}

// gooseLogger sends migration chatter to the debug level.
type gooseLogger struct {
	l *log.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.l.Debugf(strings.TrimSpace(format), v...)
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.l.Fatalf(strings.TrimSpace(format), v...)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads every team and match in their stored order.
func (s *SQLiteStore) Load(ctx context.Context) (*league.Snapshot, error) {
	snap := &league.Snapshot{}

	rows, err := s.db.QueryContext(ctx, `SELECT name, rating, matches_played, wins, losses, active, provisional, history
		FROM teams ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t league.Team
		var history string
		if err := rows.Scan(&t.Name, &t.Rating, &t.MatchesPlayed, &t.Wins, &t.Losses, &t.Active, &t.Provisional, &history); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		if err := json.Unmarshal([]byte(history), &t.History); err != nil {
			return nil, fmt.Errorf("team %s history: %w", t.Name, err)
		}
		if len(t.History) == 0 {
			t.History = nil
		}
		snap.Teams = append(snap.Teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading teams: %w", err)
	}

	mrows, err := s.db.QueryContext(ctx, `SELECT match_id, team_a, team_b, week, score_a, score_b, set_scores,
		completed, scheduled, scheduled_at, completed_at, delta_a, delta_b
		FROM matches ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var m league.Match
		var scoreA, scoreB sql.NullInt64
		var sets string
		var scheduledAt, completedAt sql.NullString
		if err := mrows.Scan(&m.ID, &m.TeamA, &m.TeamB, &m.Week, &scoreA, &scoreB, &sets,
			&m.Completed, &m.Scheduled, &scheduledAt, &completedAt, &m.DeltaA, &m.DeltaB); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if scoreA.Valid && scoreB.Valid {
			m.Score = &[2]int{int(scoreA.Int64), int(scoreB.Int64)}
		}
		if err := json.Unmarshal([]byte(sets), &m.SetScores); err != nil {
			return nil, fmt.Errorf("match %s set scores: %w", m.ID, err)
		}
		if len(m.SetScores) == 0 {
			m.SetScores = nil
		}
		if m.ScheduledAt, err = parseTimestamp(scheduledAt.String); err != nil {
			return nil, fmt.Errorf("match %s: %w", m.ID, err)
		}
		if m.CompletedAt, err = parseTimestamp(completedAt.String); err != nil {
			return nil, fmt.Errorf("match %s: %w", m.ID, err)
		}
		snap.Matches = append(snap.Matches, m)
	}
	if err := mrows.Err(); err != nil {
		return nil, fmt.Errorf("reading matches: %w", err)
	}

	log.Debug("Loaded league from database.", "teams", len(snap.Teams), "matches", len(snap.Matches))
	return snap, nil
}

const upsertTeam = `INSERT INTO teams (name, seq, rating, matches_played, wins, losses, active, provisional, history)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	seq = excluded.seq,
	rating = excluded.rating,
	matches_played = excluded.matches_played,
	wins = excluded.wins,
	losses = excluded.losses,
	active = excluded.active,
	provisional = excluded.provisional,
	history = excluded.history`

const upsertMatch = `INSERT INTO matches (match_id, seq, team_a, team_b, week, score_a, score_b, set_scores,
	completed, scheduled, scheduled_at, completed_at, delta_a, delta_b)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(match_id) DO UPDATE SET
	seq = excluded.seq,
	team_a = excluded.team_a,
	team_b = excluded.team_b,
	week = excluded.week,
	score_a = excluded.score_a,
	score_b = excluded.score_b,
	set_scores = excluded.set_scores,
	completed = excluded.completed,
	scheduled = excluded.scheduled,
	scheduled_at = excluded.scheduled_at,
	completed_at = excluded.completed_at,
	delta_a = excluded.delta_a,
	delta_b = excluded.delta_b`

// Save upserts every row of the snapshot and deletes rows it no longer
// contains, in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap *league.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	keepTeams := make(map[string]bool, len(snap.Teams))
	for i, t := range snap.Teams {
		history, err := json.Marshal(nonNil(t.History))
		if err != nil {
			return fmt.Errorf("encoding team %s history: %w", t.Name, err)
		}
		if _, err := tx.ExecContext(ctx, upsertTeam, t.Name, i, t.Rating, t.MatchesPlayed, t.Wins, t.Losses,
			t.Active, t.Provisional, string(history)); err != nil {
			return fmt.Errorf("saving team %s: %w", t.Name, err)
		}
		keepTeams[t.Name] = true
	}
	if err := deleteMissing(ctx, tx, "teams", "name", keepTeams); err != nil {
		return err
	}

	keepMatches := make(map[string]bool, len(snap.Matches))
	for i, m := range snap.Matches {
		sets, err := json.Marshal(nonNil(m.SetScores))
		if err != nil {
			return fmt.Errorf("encoding match %s set scores: %w", m.ID, err)
		}
		var scoreA, scoreB sql.NullInt64
		if m.Score != nil {
			scoreA = sql.NullInt64{Int64: int64(m.Score[0]), Valid: true}
			scoreB = sql.NullInt64{Int64: int64(m.Score[1]), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, upsertMatch, m.ID, i, m.TeamA, m.TeamB, m.Week, scoreA, scoreB, string(sets),
			m.Completed, m.Scheduled, formatTimestamp(m.ScheduledAt), formatTimestamp(m.CompletedAt),
			m.DeltaA, m.DeltaB); err != nil {
			return fmt.Errorf("saving match %s: %w", m.ID, err)
		}
		keepMatches[m.ID] = true
	}
	if err := deleteMissing(ctx, tx, "matches", "match_id", keepMatches); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func deleteMissing(ctx context.Context, tx *sql.Tx, table, key string, keep map[string]bool) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", key, table))
	if err != nil {
		return fmt.Errorf("listing %s: %w", table, err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("listing %s: %w", table, err)
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing %s: %w", table, err)
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, key), id); err != nil {
			return fmt.Errorf("deleting from %s: %w", table, err)
		}
	}
	return nil
}

// ImportJSON seeds an empty database from teams.json and matches.json in dir.
// It reports whether anything was imported.
func (s *SQLiteStore) ImportJSON(ctx context.Context, dir string, opts ...Option) (bool, error) {
	var rows int
	if err := s.db.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM teams) + (SELECT COUNT(*) FROM matches)`).Scan(&rows); err != nil {
		return false, fmt.Errorf("checking for existing data: %w", err)
	}
	if rows > 0 {
		return false, nil
	}

	snap, err := NewJSON(dir, opts...).Load(ctx)
	if err != nil {
		log.Warn("Skipping JSON import.", "dir", dir, "error", err)
		return false, nil
	}
	if len(snap.Teams) == 0 && len(snap.Matches) == 0 {
		return false, nil
	}
	if err := s.Save(ctx, snap); err != nil {
		return false, fmt.Errorf("importing %s: %w", dir, err)
	}
	log.Info("Imported JSON data into database.", "dir", dir, "teams", len(snap.Teams), "matches", len(snap.Matches))
	return true, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func formatTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}
