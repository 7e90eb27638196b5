// Package badger implements the local durable store on BadgerDB: an
// embedded key-value layer holding the note list and the per-identity seen
// markers. It is the only layer available when the user is unauthenticated
// and the fallback target when the remote store misbehaves.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/aretw0/stratum/pkg/core"
)

// Persisted keys. The seen-marker key is suffixed with the identity id so
// markers survive account switches independently.
const (
	notesKey      = "notes"
	seenKeyPrefix = "seenSharedNotes_"
)

// Config holds the options for opening the store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory disables disk persistence. Useful for tests.
	InMemory bool

	// SyncWrites forces synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// Store implements core.LocalStore on a BadgerDB instance.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at the configured path.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&slogAdapter{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway in-memory store for testing.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// Notes returns the full persisted note list (empty when never written).
func (s *Store) Notes(ctx context.Context) ([]core.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var notes []core.Note
	err := s.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, notesKey, &notes)
	})
	if err != nil {
		return nil, fmt.Errorf("read notes: %w", err)
	}
	if notes == nil {
		notes = []core.Note{}
	}
	return notes, nil
}

// ReplaceNotes overwrites the full note list.
func (s *Store) ReplaceNotes(ctx context.Context, notes []core.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if notes == nil {
		notes = []core.Note{}
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return writeJSON(txn, notesKey, notes)
	})
	if err != nil {
		return fmt.Errorf("write notes: %w", err)
	}
	return nil
}

// SeenNotes returns the identity's seen marker set.
func (s *Store) SeenNotes(ctx context.Context, identityID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var seen []string
	err := s.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, seenKeyPrefix+identityID, &seen)
	})
	if err != nil {
		return nil, fmt.Errorf("read seen markers: %w", err)
	}
	if seen == nil {
		seen = []string{}
	}
	return seen, nil
}

// MarkSeen appends a note id to the identity's seen set. Idempotent: a
// repeated mark leaves the set unchanged. Entries are never removed here;
// the seen set is additive only.
func (s *Store) MarkSeen(ctx context.Context, identityID, noteID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := seenKeyPrefix + identityID
	err := s.db.Update(func(txn *badger.Txn) error {
		var seen []string
		if err := readJSON(txn, key, &seen); err != nil {
			return err
		}
		for _, id := range seen {
			if id == noteID {
				return nil
			}
		}
		return writeJSON(txn, key, append(seen, noteID))
	})
	if err != nil {
		return fmt.Errorf("write seen markers: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func readJSON(txn *badger.Txn, key string, out any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func writeJSON(txn *badger.Txn, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), raw)
}

// slogAdapter bridges slog to BadgerDB's Logger interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (l *slogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *slogAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *slogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *slogAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

var _ core.LocalStore = (*Store)(nil)
