// Package local implements the browser local-storage analogue: a key/value
// store partitioned by browser session, persisted in SQLite.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"

	_ "modernc.org/sqlite"
)

// Documented storage keys.
const (
	KeyToken            = "token"
	KeyUser             = "user"
	KeyDeliveryLocation = "deliveryLocation"
	KeyDeliveryPincode  = "deliveryPincode"
	KeyRecentSearches   = "recentSearches"
	KeySavedForLater    = "savedForLater"
	KeyGuestCart        = "guestCart"
	KeyGuestWishlist    = "guestWishlist"
)

// ErrNotFound is returned when a key has no value in the partition.
var ErrNotFound = errors.New("key not found")

const schema = `
CREATE TABLE IF NOT EXISTS local_storage (
	partition  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (partition, key)
);`

// Store is a SQLite-backed partitioned key/value store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the store at path. Use ":memory:" for an
// ephemeral store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get returns the raw value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, partition, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM local_storage WHERE partition = ? AND key = ?`,
		partition, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get %s/%s", partition, key)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, partition, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO local_storage (partition, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (partition, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		partition, key, value, s.now().Unix(),
	)
	if err != nil {
		return errors.Wrapf(err, "set %s/%s", partition, key)
	}
	return nil
}

// Delete removes key from the partition. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, partition string, keys ...string) error {
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM local_storage WHERE partition = ? AND key = ?`, partition, key,
		); err != nil {
			return errors.Wrapf(err, "delete %s/%s", partition, key)
		}
	}
	return nil
}

// Clear removes every key of the partition.
func (s *Store) Clear(ctx context.Context, partition string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM local_storage WHERE partition = ?`, partition,
	); err != nil {
		return errors.Wrapf(err, "clear %s", partition)
	}
	return nil
}

// PurgeBefore removes partitions untouched since cutoff and returns the
// number of rows deleted.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM local_storage WHERE partition IN (
			SELECT partition FROM local_storage GROUP BY partition HAVING MAX(updated_at) < ?
		)`, cutoff.Unix(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "purge partitions")
	}
	return res.RowsAffected()
}

// GetJSON decodes the value under key into v. It returns ErrNotFound when the
// key is absent.
func (s *Store) GetJSON(ctx context.Context, partition, key string, v any) error {
	raw, err := s.Get(ctx, partition, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrapf(err, "decode %s/%s", partition, key)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func (s *Store) SetJSON(ctx context.Context, partition, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s/%s", partition, key)
	}
	return s.Set(ctx, partition, key, raw)
}

// Update replaces the value under key with fn(old) in one transaction, so
// concurrent updates of a key never overwrite each other. old is nil when the
// key is absent. Nothing is written when fn fails; its error is returned as is.
func (s *Store) Update(ctx context.Context, partition, key string, fn func(old []byte) ([]byte, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	var old []byte
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM local_storage WHERE partition = ? AND key = ?`,
		partition, key,
	).Scan(&old)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(err, "get %s/%s", partition, key)
	}

	next, err := fn(old)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO local_storage (partition, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (partition, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		partition, key, next, s.now().Unix(),
	); err != nil {
		return errors.Wrapf(err, "set %s/%s", partition, key)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "commit %s/%s", partition, key)
	}
	return nil
}

// Updater is implemented by Store.
type Updater interface {
	Update(ctx context.Context, partition, key string, fn func(old []byte) ([]byte, error)) error
}

// UpdateJSON decodes the value under key into v (zero when absent), applies
// fn and stores the result, all within one Update.
func UpdateJSON[T any](ctx context.Context, u Updater, partition, key string, fn func(v *T) error) error {
	return u.Update(ctx, partition, key, func(old []byte) ([]byte, error) {
		var v T
		if old != nil {
			if err := json.Unmarshal(old, &v); err != nil {
				return nil, errors.Wrapf(err, "decode %s/%s", partition, key)
			}
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s/%s", partition, key)
		}
		return raw, nil
	})
}
