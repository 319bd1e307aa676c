// Package store persists league snapshots. Callers load a whole snapshot,
// mutate it in memory and save it back.
package store

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/derekprior/standings/internal/config"
	"github.com/derekprior/standings/internal/league"
)

// Store loads and saves the full league dataset.
type Store interface {
	Load(ctx context.Context) (*league.Snapshot, error)
	Save(ctx context.Context, s *league.Snapshot) error
	Close() error
}

type options struct {
	baseRating int
}

// Option tunes how stored JSON data is read.
type Option func(*options)

// WithBaseRating sets the rating given to stored teams that have none.
func WithBaseRating(rating int) Option {
	return func(o *options) {
		o.baseRating = rating
	}
}

func newOptions(opts ...Option) options {
	o := options{baseRating: config.DefaultRating().BaseRating}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open returns the backend selected by cfg. An empty SQLite database is
// seeded from JSON files left in cfg.Dir.
func Open(ctx context.Context, cfg config.Storage, opts ...Option) (Store, error) {
	switch cfg.Backend {
	case config.BackendJSON:
		log.Debug("Using JSON store.", "dir", cfg.Dir)
		return NewJSON(cfg.Dir, opts...), nil
	case config.BackendSQLite:
		s, err := NewSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.Dir != "" {
			if _, err := s.ImportJSON(ctx, cfg.Dir, opts...); err != nil {
				s.Close()
				return nil, err
			}
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
