// Package storage defines the ordered log abstraction used for durability.
//
// # Overview
//
// The Log interface models an append-mostly sequence of binary records keyed
// by uint64 sequence numbers. It is the persistence contract of the WAL
// operator: the operator owns the cursors, the Log owns the bytes.
//
// Implementations live in sub-packages:
//   - storage/wal: badger v4 backed log on a local directory (or in memory
//     for tests)
//
// # Key Model
//
// Keys are plain uint64 values at the interface. Implementations encode them
// so that byte order equals numeric order (big-endian, fixed 8 bytes), which
// makes range scans over the underlying store return entries in sequence
// order.
//
// # Usage
//
//	log, err := wal.Open(wal.Options{Path: "./wal"})
//	if err != nil {
//	    return err
//	}
//	defer log.Close()
//
//	_ = log.Insert(1, payload)
//	entries, _ := log.Range(1, 6, 5)
//	last, ok, _ := log.Last()
//
// # Thread Safety
//
// All Log implementations must be safe for concurrent use from multiple
// goroutines.
package storage
