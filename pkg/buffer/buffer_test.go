package buffer

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/metric"
)

func TestRing_BasicOperations(t *testing.T) {
	r, err := New[string](3)
	require.NoError(t, err)

	require.NoError(t, r.Write("first"))
	require.NoError(t, r.Write("second"))
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 3, r.Cap())

	assert.Equal(t, []string{"first"}, r.ReadBatch(1))
	assert.Equal(t, []string{"second"}, r.ReadBatch(10))
	assert.Nil(t, r.ReadBatch(10))
	assert.Nil(t, r.ReadBatch(0))
}

func TestRing_OverflowPolicies(t *testing.T) {
	tests := []struct {
		name    string
		policy  OverflowPolicy
		want    []int
		dropped []int
	}{
		{"drop oldest", DropOldest, []int{3, 4, 5}, []int{1, 2}},
		{"drop newest", DropNewest, []int{1, 2, 3}, []int{4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dropped []int
			r, err := New[int](3,
				WithOverflowPolicy[int](tt.policy),
				WithDropCallback[int](func(item int) { dropped = append(dropped, item) }),
			)
			require.NoError(t, err)

			for i := 1; i <= 5; i++ {
				require.NoError(t, r.Write(i))
			}
			assert.Equal(t, tt.want, r.ReadBatch(10))
			assert.Equal(t, tt.dropped, dropped)

			stats := r.Stats()
			assert.Equal(t, int64(2), stats.Drops)
			assert.Equal(t, 3, stats.MaxSize)
			assert.Equal(t, int64(3), stats.Reads)
		})
	}
}

func TestRing_WrapAround(t *testing.T) {
	r, err := New[int](2)
	require.NoError(t, err)

	for round := 0; round < 5; round++ {
		require.NoError(t, r.Write(round*2))
		require.NoError(t, r.Write(round*2+1))
		assert.Equal(t, []int{round * 2, round*2 + 1}, r.ReadBatch(2))
	}
}

func TestRing_Ready(t *testing.T) {
	r, err := New[int](4)
	require.NoError(t, err)

	select {
	case <-r.Ready():
		t.Fatal("ready before any write")
	default:
	}

	require.NoError(t, r.Write(1))
	require.NoError(t, r.Write(2))
	<-r.Ready()
	assert.Equal(t, []int{1, 2}, r.ReadBatch(10))

	select {
	case <-r.Ready():
		t.Fatal("two writes must coalesce into one wake-up")
	default:
	}
}

func TestRing_Closed(t *testing.T) {
	r, err := New[int](2)
	require.NoError(t, err)
	require.NoError(t, r.Write(1))
	require.NoError(t, r.Close())

	err = r.Write(2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrShuttingDown))
	assert.Equal(t, []int{1}, r.ReadBatch(10), "queued items stay readable")
}

func TestRing_MinimumCapacity(t *testing.T) {
	r, err := New[int](0)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Cap())
}

func TestRing_Concurrent(t *testing.T) {
	r, err := New[int](1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				_ = r.Write(i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), r.Stats().Writes)
	assert.Len(t, r.ReadBatch(2000), 1000)
}

func TestRing_Metrics(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	r, err := New[int](2, WithMetrics[int](reg, "test_ring"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Write(i))
	}
	r.ReadBatch(1)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.metrics.writes))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.drops))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.reads))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.size))

	_, err = New[int](2, WithMetrics[int](reg, "test_ring"))
	assert.Error(t, err, "duplicate registration is reported")
}

func TestOverflowPolicy_String(t *testing.T) {
	assert.Equal(t, "DropOldest", DropOldest.String())
	assert.Equal(t, "DropNewest", DropNewest.String())
	assert.Equal(t, "Unknown", OverflowPolicy(7).String())
}
