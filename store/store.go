// Package store persists finished runs in an embedded badger database.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("run not found")

const runPrefix = "run/"

type Config struct {
	Enabled    bool          `mapstructure:"enabled"`
	Path       string        `mapstructure:"path" validate:"required_if=Enabled true InMemory false"`
	InMemory   bool          `mapstructure:"in_memory"`
	SyncWrites bool          `mapstructure:"sync_writes"`
	GCInterval time.Duration `mapstructure:"gc_interval" validate:"gte=0"`
}

func InMemoryConfig() Config {
	return Config{Enabled: true, InMemory: true}
}

// badgerLogger routes badger's own logging through zerolog.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any)   { l.logger.Error().Msgf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...any) { l.logger.Warn().Msgf(format, args...) }
func (l badgerLogger) Infof(format string, args ...any)    { l.logger.Debug().Msgf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...any)   { l.logger.Trace().Msgf(format, args...) }

type Store struct {
	db   *badger.DB
	stop chan struct{}
	wg   sync.WaitGroup
}

func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("store path is required for a persistent store")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{logger: log.With().Str("component", "badger").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	s := &Store{db: db, stop: make(chan struct{})}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		s.wg.Add(1)
		go s.collectGarbage(cfg.GCInterval)
	}
	return s, nil
}

func (s *Store) collectGarbage(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for s.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}

// Put stores v as JSON under id, replacing any previous run.
func (s *Store) Put(ctx context.Context, id string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", id, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runPrefix+id), data)
	})
}

// Get decodes the run stored under id into out.
func (s *Store) Get(ctx context.Context, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runPrefix + id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// IDs returns up to limit run IDs in descending key order. A non-positive
// limit returns all of them.
func (s *Store) IDs(ctx context.Context, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(runPrefix)
		for it.Seek(append([]byte(runPrefix), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
			if limit > 0 && len(ids) == limit {
				break
			}
		}
		return nil
	})
	return ids, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(runPrefix + id))
	})
}

func (s *Store) Close() error {
	close(s.stop)
	s.wg.Wait()
	return s.db.Close()
}
