// Package leveldb persists the version record and the event log in two LevelDB
// databases under a common directory. Each operation opens and closes its database,
// so no handle is held between requests and other processes (sdxctl) can share the
// directory.
package leveldb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"sdx-topology/domain/topology"
	apperrors "sdx-topology/pkg/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Fixed database names under the store directory
const (
	TopologyDB = "topology"
	EventsDB   = "events"
)

var recordKey = []byte("record")

// DefaultLockWait bounds how long an operation waits for another process to release
// a database
const DefaultLockWait = 10 * time.Second

// Option configures a store
type Option func(*database)

// WithLockWait sets how long opening a database retries while another process, such
// as sdxctl, holds its file lock
func WithLockWait(d time.Duration) Option {
	return func(db *database) {
		if d > 0 {
			db.lockWait = d
		}
	}
}

// database serializes access to one LevelDB directory. LevelDB takes an exclusive file
// lock on open, so concurrent operations in this process must not overlap, and an
// operation that finds the lock held by another process backs off and retries.
type database struct {
	mu       sync.Mutex
	path     string
	lockWait time.Duration
}

func newDatabase(dir, name string, opts []Option) (*database, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	db := &database{path: filepath.Join(dir, name), lockWait: DefaultLockWait}
	for _, apply := range opts {
		apply(db)
	}
	return db, nil
}

func (d *database) with(ctx context.Context, fn func(db *leveldb.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	db, err := d.open(ctx)
	if err != nil {
		return apperrors.NewDatabaseError("open "+filepath.Base(d.path), err)
	}
	defer db.Close()

	return fn(db)
}

func (d *database) open(ctx context.Context) (*leveldb.DB, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = d.lockWait

	var db *leveldb.DB
	err := backoff.Retry(func() error {
		var openErr error
		db, openErr = leveldb.OpenFile(d.path, &opt.Options{})
		if openErr != nil && !isLocked(openErr) {
			return backoff.Permanent(openErr)
		}
		return openErr
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, err
	}
	return db, nil
}

// isLocked reports whether OpenFile failed because the database lock is held
func isLocked(err error) bool {
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EWOULDBLOCK) ||
		errors.Is(err, storage.ErrLocked)
}

// VersionStore keeps the version record as one JSON value
type VersionStore struct {
	db *database
}

// NewVersionStore creates a store rooted at dir
func NewVersionStore(dir string, opts ...Option) (*VersionStore, error) {
	db, err := newDatabase(dir, TopologyDB, opts)
	if err != nil {
		return nil, err
	}
	return &VersionStore{db: db}, nil
}

func (s *VersionStore) Read(ctx context.Context) (topology.VersionRecord, error) {
	var record topology.VersionRecord
	err := s.db.with(ctx, func(db *leveldb.DB) error {
		var readErr error
		record, readErr = readRecord(db)
		return readErr
	})
	return record, err
}

func (s *VersionStore) Initialize(ctx context.Context, identity topology.Identity, timestamp string) (topology.VersionRecord, error) {
	if err := identity.Validate(); err != nil {
		return topology.VersionRecord{}, apperrors.NewValidationError(err.Error())
	}

	var record topology.VersionRecord
	err := s.db.with(ctx, func(db *leveldb.DB) error {
		existing, err := readRecord(db)
		if err == nil {
			record = existing
			return nil
		}
		if !apperrors.IsStoreNotInitialized(err) {
			return err
		}

		record = topology.NewVersionRecord(identity, timestamp)
		return writeRecord(db, record)
	})
	return record, err
}

func (s *VersionStore) Commit(ctx context.Context, base, next topology.VersionRecord) error {
	if err := next.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	return s.db.with(ctx, func(db *leveldb.DB) error {
		stored, err := readRecord(db)
		if err != nil {
			return err
		}
		if !stored.SameRevision(base) {
			return apperrors.NewVersionConflictError(base.Version, stored.Version)
		}
		return writeRecord(db, next)
	})
}

func readRecord(db *leveldb.DB) (topology.VersionRecord, error) {
	data, err := db.Get(recordKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return topology.VersionRecord{}, apperrors.NewStoreNotInitializedError()
	}
	if err != nil {
		return topology.VersionRecord{}, apperrors.NewDatabaseError("read record", err)
	}

	var record topology.VersionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return topology.VersionRecord{}, apperrors.NewDatabaseError("decode record", err)
	}
	if err := record.Validate(); err != nil {
		return topology.VersionRecord{}, apperrors.NewDatabaseError("validate record", err)
	}
	return record, nil
}

func writeRecord(db *leveldb.DB, record topology.VersionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return apperrors.NewInternalError("encode version record").WithCause(err)
	}
	if err := db.Put(recordKey, data, &opt.WriteOptions{Sync: true}); err != nil {
		return apperrors.NewDatabaseError("write record", err)
	}
	return nil
}

var (
	eventPrefix = []byte("event/")
	firstKey    = []byte("meta/first")
	nextKey     = []byte("meta/next")
)

// EventLog stores event names under sequence-ordered keys and trims the oldest
// entries beyond maxEntries
type EventLog struct {
	db         *database
	maxEntries int
}

// NewEventLog creates a log rooted at dir. maxEntries <= 0 disables trimming.
func NewEventLog(dir string, maxEntries int, opts ...Option) (*EventLog, error) {
	db, err := newDatabase(dir, EventsDB, opts)
	if err != nil {
		return nil, err
	}
	return &EventLog{db: db, maxEntries: maxEntries}, nil
}

func (l *EventLog) Append(ctx context.Context, name string) error {
	return l.db.with(ctx, func(db *leveldb.DB) error {
		first, err := readCounter(db, firstKey)
		if err != nil {
			return err
		}
		next, err := readCounter(db, nextKey)
		if err != nil {
			return err
		}

		batch := new(leveldb.Batch)
		batch.Put(eventKey(next), []byte(name))
		next++
		if l.maxEntries > 0 {
			for next-first > uint64(l.maxEntries) {
				batch.Delete(eventKey(first))
				first++
			}
		}
		batch.Put(firstKey, encodeCounter(first))
		batch.Put(nextKey, encodeCounter(next))

		if err := db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
			return apperrors.NewDatabaseError("append event", err)
		}
		return nil
	})
}

func (l *EventLog) List(ctx context.Context) ([]string, error) {
	names := []string{}
	err := l.db.with(ctx, func(db *leveldb.DB) error {
		iter := db.NewIterator(util.BytesPrefix(eventPrefix), nil)
		defer iter.Release()
		for iter.Next() {
			names = append(names, string(iter.Value()))
		}
		if err := iter.Error(); err != nil {
			return apperrors.NewDatabaseError("list events", err)
		}
		return nil
	})
	return names, err
}

func eventKey(seq uint64) []byte {
	key := make([]byte, len(eventPrefix)+8)
	copy(key, eventPrefix)
	binary.BigEndian.PutUint64(key[len(eventPrefix):], seq)
	return key
}

func readCounter(db *leveldb.DB, key []byte) (uint64, error) {
	data, err := db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.NewDatabaseError("read counter", err)
	}
	if len(data) != 8 {
		return 0, apperrors.NewDatabaseError("read counter", fmt.Errorf("counter %s has %d bytes", key, len(data)))
	}
	return binary.BigEndian.Uint64(data), nil
}

func encodeCounter(v uint64) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, v)
	return data
}
