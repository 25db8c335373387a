package storage

// Entry is one record of an ordered log.
type Entry struct {
	Key   uint64
	Value []byte
}

// Log is an ordered, durable key-value log keyed by unsigned sequence
// numbers.
//
// Keys sort numerically. Each Log instance has exclusive ownership of its
// backing storage; opening the same location twice fails.
//
// Implementations must be safe for concurrent use, although the runtime only
// ever drives a Log from the single goroutine that owns its operator.
//
// Example implementation:
//   - wal.Store: badger-backed log used by the WAL operator
type Log interface {
	// Insert stores value at key, replacing anything already there.
	Insert(key uint64, value []byte) error

	// Range returns entries with start <= key <= end in ascending key order,
	// at most limit of them. A limit of zero or less means no limit.
	// Keys that were never written are simply absent from the result.
	Range(start, end uint64, limit int) ([]Entry, error)

	// Last returns the highest key present, or ok=false for an empty log.
	Last() (key uint64, ok bool, err error)

	// Close releases the backing storage. Further calls fail.
	Close() error
}
