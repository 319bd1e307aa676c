package manager

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/derekprior/standings/internal/excel"
	"github.com/derekprior/standings/internal/league"
	"github.com/derekprior/standings/internal/store"
	"github.com/derekprior/standings/internal/validator"
)

// Backup copies the current league into a timestamped directory under the
// configured backup dir and returns its path.
func (m *Manager) Backup(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, err := m.load(ctx)
	if err != nil {
		return "", err
	}
	return store.Backup(ctx, snap, m.cfg.Storage.BackupDir, m.now())
}

// Restore replaces the league with the most recent backup and returns the
// backup's path.
func (m *Manager) Restore(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, path, err := store.Restore(ctx, m.cfg.Storage.BackupDir)
	if err != nil {
		return "", err
	}
	if err := m.store.Save(ctx, snap); err != nil {
		return "", fmt.Errorf("saving league: %w", err)
	}
	log.Info("Restored backup.", "path", path, "teams", len(snap.Teams), "matches", len(snap.Matches))
	return path, nil
}

// Export writes the standings workbook to path.
func (m *Manager) Export(ctx context.Context, path string) error {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return err
	}
	f, err := excel.Generate(m.cfg.Season, snap)
	if err != nil {
		return fmt.Errorf("generating Excel: %w", err)
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving file: %w", err)
	}
	log.Info("Exported workbook.", "path", path)
	return nil
}

// ExportPreview writes a preview to path in the layout ImportSchedule reads.
func (m *Manager) ExportPreview(p Preview, path string) error {
	f, err := excel.WriteProposed(p.Week, p.Pairs)
	if err != nil {
		return fmt.Errorf("generating Excel: %w", err)
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving file: %w", err)
	}
	log.Info("Exported proposed schedule.", "path", path, "week", p.Week, "pairs", len(p.Pairs))
	return nil
}

// ValidateSchedule checks a proposed schedule workbook without importing it.
func (m *Manager) ValidateSchedule(ctx context.Context, path string, perTeam int) ([]validator.Violation, error) {
	if perTeam < 1 {
		perTeam = m.cfg.Schedule.MatchesPerTeam
	}
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	_, violations, err := validator.Validate(snap, perTeam, path)
	if err != nil {
		return nil, fmt.Errorf("validating: %w", err)
	}
	return violations, nil
}

// ImportSchedule validates a proposed schedule workbook and, when it has no
// errors, adds its pairings as unscheduled matches. Warnings do not block
// the import. On errors nothing is saved and the violations are returned
// with an error wrapping ErrInvalidSchedule.
func (m *Manager) ImportSchedule(ctx context.Context, path string, perTeam int) ([]league.Match, []validator.Violation, error) {
	if perTeam < 1 {
		perTeam = m.cfg.Schedule.MatchesPerTeam
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var created []league.Match
	var violations []validator.Violation
	_, err := m.update(ctx, func(s *league.Snapshot) error {
		rows, v, err := validator.Validate(s, perTeam, path)
		if err != nil {
			return fmt.Errorf("validating: %w", err)
		}
		violations = v
		if validator.HasErrors(v) {
			return fmt.Errorf("%s: %w", path, ErrInvalidSchedule)
		}
		for _, r := range rows {
			match, err := league.NewMatch(r.TeamA, r.TeamB, r.Week)
			if err != nil {
				return err
			}
			created = append(created, match)
		}
		s.Matches = append(s.Matches, created...)
		return nil
	})
	if err != nil {
		return nil, violations, err
	}
	log.Info("Imported schedule.", "path", path, "matches", len(created), "warnings", len(violations))
	return created, violations, nil
}
