package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/derekprior/standings/internal/league"
)

const backupPrefix = "backup-"

// ErrNoBackup is returned by Restore when the backup directory is empty.
var ErrNoBackup = errors.New("no backups found")

// Backup writes the snapshot as JSON into a timestamped directory under dir
// and returns its path.
func Backup(ctx context.Context, snap *league.Snapshot, dir string, now time.Time) (string, error) {
	path := filepath.Join(dir, backupPrefix+now.Format("20060102_150405"))
	if err := NewJSON(path).Save(ctx, snap); err != nil {
		return "", fmt.Errorf("writing backup: %w", err)
	}
	log.Info("Wrote backup.", "path", path, "teams", len(snap.Teams), "matches", len(snap.Matches))
	return path, nil
}

// Backups lists backup directories under dir, oldest first.
func Backups(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Restore loads the most recent backup under dir.
func Restore(ctx context.Context, dir string) (*league.Snapshot, string, error) {
	backups, err := Backups(dir)
	if err != nil {
		return nil, "", err
	}
	if len(backups) == 0 {
		return nil, "", fmt.Errorf("%s: %w", dir, ErrNoBackup)
	}
	latest := backups[len(backups)-1]
	snap, err := NewJSON(latest).Load(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("reading backup %s: %w", latest, err)
	}
	return snap, latest, nil
}
