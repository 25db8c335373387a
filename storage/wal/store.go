// Package wal implements storage.Log on badger.
package wal

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/storage"
)

// KeySize is the encoded width of a log key.
const KeySize = 8

// EncodeKey encodes a sequence number as 8 big-endian bytes.
func EncodeKey(seq uint64) []byte {
	k := make([]byte, KeySize)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// DecodeKey reverses EncodeKey.
func DecodeKey(k []byte) (uint64, error) {
	if len(k) != KeySize {
		return 0, fmt.Errorf("key of %d bytes: %w", len(k), errors.ErrDataCorrupted)
	}
	return binary.BigEndian.Uint64(k), nil
}

// Options configures a Store.
type Options struct {
	// Path is the directory holding the log. Ignored when InMemory is set.
	Path string
	// InMemory keeps the log in memory only.
	InMemory bool
	// SyncWrites fsyncs every write before Insert returns.
	SyncWrites bool
	// Logger receives badger's internal log lines at debug level and above.
	// Nil silences badger.
	Logger *slog.Logger
}

// Store is a badger-backed storage.Log.
type Store struct {
	db     *badger.DB
	path   string
	mu     sync.RWMutex
	closed bool
}

var _ storage.Log = (*Store)(nil)

// Open opens or creates the log. Failure is a configuration error.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.WrapFatal(
			fmt.Errorf("path is required: %w", errors.ErrConfig),
			"Store", "Open", "options validation")
	}

	bopts := badger.DefaultOptions(opts.Path).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(newBadgerLogger(opts.Logger))
	if opts.InMemory {
		bopts = bopts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.WrapFatal(errors.Mark(err, errors.ErrConfig),
			"Store", "Open", fmt.Sprintf("open badger at %q", opts.Path))
	}
	return &Store{db: db, path: opts.Path}, nil
}

// Path returns the directory the store was opened on.
func (s *Store) Path() string {
	return s.path
}

// Insert stores value under key.
func (s *Store) Insert(key uint64, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.WrapFatal(errors.ErrStorageUnavailable, "Store", "Insert", "closed store")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(EncodeKey(key), value)
	})
	if err != nil {
		return errors.WrapTransient(err, "Store", "Insert", fmt.Sprintf("write key %d", key))
	}
	return nil
}

// Range returns entries in [start, end], at most limit of them.
func (s *Store) Range(start, end uint64, limit int) ([]storage.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.WrapFatal(errors.ErrStorageUnavailable, "Store", "Range", "closed store")
	}
	if start > end {
		return nil, nil
	}

	var out []storage.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(EncodeKey(start)); it.Valid(); it.Next() {
			if limit > 0 && len(out) >= limit {
				return nil
			}
			item := it.Item()
			key, err := DecodeKey(item.Key())
			if err != nil {
				return err
			}
			if key > end {
				return nil
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, storage.Entry{Key: key, Value: val})
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "Range", fmt.Sprintf("scan [%d, %d]", start, end))
	}
	return out, nil
}

// Last returns the highest key in the log.
func (s *Store) Last() (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, false, errors.WrapFatal(errors.ErrStorageUnavailable, "Store", "Last", "closed store")
	}

	var (
		last  uint64
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		if !it.Valid() {
			return nil
		}
		key, err := DecodeKey(it.Item().Key())
		if err != nil {
			return err
		}
		last, found = key, true
		return nil
	})
	if err != nil {
		return 0, false, errors.WrapTransient(err, "Store", "Last", "reverse scan")
	}
	return last, found, nil
}

// Close releases the badger directory lock. Calling Close twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return errors.WrapTransient(err, "Store", "Close", "close badger")
	}
	return nil
}

// badgerLogger forwards badger's printf-style logging to slog.
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) badger.Logger {
	if logger == nil {
		return nil
	}
	return &badgerLogger{logger: logger.With("subsystem", "badger")}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
