package wal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/storage"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKeyEncoding(t *testing.T) {
	for _, seq := range []uint64{0, 1, 255, 256, 1 << 40, ^uint64(0)} {
		k := EncodeKey(seq)
		require.Len(t, k, KeySize)
		got, err := DecodeKey(k)
		require.NoError(t, err)
		assert.Equal(t, seq, got)
	}

	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, EncodeKey(1))

	_, err := DecodeKey([]byte{1, 2})
	assert.True(t, errors.Is(err, errors.ErrDataCorrupted))
}

func TestStore_InsertRange(t *testing.T) {
	s := openMemory(t)

	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, s.Insert(i, []byte(fmt.Sprintf("v%d", i))))
	}

	tests := []struct {
		name       string
		start, end uint64
		limit      int
		want       []uint64
	}{
		{name: "inclusive", start: 2, end: 4, want: []uint64{2, 3, 4}},
		{name: "limit", start: 1, end: 10, limit: 3, want: []uint64{1, 2, 3}},
		{name: "past end", start: 9, end: 20, want: []uint64{9, 10}},
		{name: "empty window", start: 11, end: 20, want: nil},
		{name: "inverted", start: 5, end: 4, want: nil},
		{name: "numeric order across byte boundary", start: 1, end: 10, want: []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := s.Range(tt.start, tt.end, tt.limit)
			require.NoError(t, err)

			var keys []uint64
			for _, e := range entries {
				keys = append(keys, e.Key)
				assert.Equal(t, []byte(fmt.Sprintf("v%d", e.Key)), e.Value)
			}
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestStore_LargeKeysSortNumerically(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.Insert(256, []byte("b")))
	require.NoError(t, s.Insert(2, []byte("a")))

	entries, err := s.Range(0, 1000, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[0].Key)
	assert.Equal(t, uint64(256), entries[1].Key)

	last, ok, err := s.Last()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(256), last)
}

func TestStore_Last(t *testing.T) {
	s := openMemory(t)

	_, ok, err := s.Last()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Insert(3, []byte("x")))
	require.NoError(t, s.Insert(7, []byte("y")))

	last, ok, err := s.Last()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), last)
}

func TestStore_Overwrite(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.Insert(1, []byte("old")))
	require.NoError(t, s.Insert(1, []byte("new")))

	entries, err := s.Range(1, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []storage.Entry{{Key: 1, Value: []byte("new")}}, entries)
}

func TestStore_Persistence(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.Insert(1, []byte("durable")))
	require.NoError(t, s.Close())

	s, err = Open(Options{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.Range(1, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("durable"), entries[0].Value)
}

func TestStore_ExclusiveDirectory(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	_, err = Open(Options{Path: dir})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
	assert.True(t, errors.IsFatal(err))
}

func TestStore_Closed(t *testing.T) {
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Error(t, s.Insert(1, nil))
	_, err = s.Range(1, 2, 0)
	assert.Error(t, err)
	_, _, err = s.Last()
	assert.Error(t, err)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
}
