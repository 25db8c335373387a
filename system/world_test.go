package system

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/health"
	"github.com/jaysonsantos/tremor-runtime/metric"
	"github.com/jaysonsantos/tremor-runtime/offramp"
	"github.com/jaysonsantos/tremor-runtime/onramp"
	"github.com/jaysonsantos/tremor-runtime/operator"
	"github.com/jaysonsantos/tremor-runtime/operator/wal"
	"github.com/jaysonsantos/tremor-runtime/testutil"
	"github.com/jaysonsantos/tremor-runtime/value"
)

type fixture struct {
	source *testutil.FeedSource
	sink   *testutil.MemorySink
	deps   Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{source: testutil.NewFeedSource(16), sink: testutil.NewMemorySink()}

	onramps := onramp.NewRegistry()
	require.NoError(t, onramps.RegisterFactory(onramp.Registration{
		Name: "feed",
		Factory: func(config.OnrampConfig, onramp.Deps) (onramp.Source, error) {
			return f.source, nil
		},
	}))
	offramps := offramp.NewRegistry()
	require.NoError(t, offramps.RegisterFactory(offramp.Registration{
		Name: "memory",
		Factory: func(config.OfframpConfig, offramp.Deps) (offramp.Sink, error) {
			return f.sink, nil
		},
	}))
	operators := operator.NewRegistry()
	require.NoError(t, wal.Register(operators))

	f.deps = Deps{
		Onramps:         onramps,
		Offramps:        offramps,
		Operators:       operators,
		MetricsRegistry: metric.NewMetricsRegistry(),
		Grace:           time.Second,
	}
	return f
}

const linearDoc = `
onramps:
  - id: in
    type: feed
offramps:
  - id: out
    type: memory
pipelines:
  - id: main
    nodes:
      - id: log
        op: generic::wal
        config:
          in_memory: true
          read_count: 10
bindings:
  - from: /onramp/in/01/out
    to: [/pipeline/main/01/in]
  - from: /pipeline/main/01/out
    to: [/offramp/out/01/in]
`

func runWorld(t *testing.T, w *World) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-w.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("world failed to start: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("world did not become ready")
	}
	return cancel, done
}

func TestWorld_EndToEnd(t *testing.T) {
	f := newFixture(t)
	cfg, err := config.Parse([]byte(linearDoc))
	require.NoError(t, err)

	w, err := New(cfg, f.deps)
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID())
	require.NotNil(t, w.Pipeline("main"))
	require.NotNil(t, w.Onramp("in"))
	require.NotNil(t, w.Offramp("out"))
	assert.Nil(t, w.Pipeline("nope"))

	cancel, done := runWorld(t, w)
	status := w.Health().Aggregate()
	assert.Equal(t, health.StateHealthy, status.State)
	assert.Len(t, status.SubStatuses, 3)

	f.source.Feed <- []byte(`{"n":1}`)
	f.source.Feed <- []byte(`{"n":2}`)
	require.Eventually(t, func() bool { return len(f.sink.Records()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`}, f.sink.Records())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("world did not stop")
	}
	assert.True(t, f.sink.Opened())
	assert.True(t, f.sink.Closed())
	assert.True(t, f.source.Stopped())

	op, ok := w.Pipeline("main").Operator("log")
	require.True(t, ok)
	write, read := op.(*wal.WAL).Cursors()
	assert.Equal(t, uint64(2), write)
	assert.Equal(t, uint64(3), read)
}

func TestWorld_OnrampStartFailure(t *testing.T) {
	f := newFixture(t)
	f.source.StartErr = errors.WrapFatal(errors.ErrConfig, "feed", "Start", "bind")
	cfg, err := config.Parse([]byte(linearDoc))
	require.NoError(t, err)

	w, err := New(cfg, f.deps)
	require.NoError(t, err)

	err = w.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfig)
	assert.True(t, f.sink.Closed())
}

func TestWorld_PipelineFailureStopsWorld(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.deps.Operators.RegisterFactory(operator.Registration{
		Name: "test::reject",
		Factory: func(operator.NodeConfig, operator.Deps) (operator.Operator, error) {
			return rejectAll{}, nil
		},
	}))
	doc := `
onramps: [{id: in, type: feed}]
offramps: [{id: out, type: memory}]
pipelines:
  - id: main
    nodes: [{id: r, op: test::reject, on_error: fail}]
bindings:
  - {from: /onramp/in/01/out, to: [/pipeline/main/01/in]}
  - {from: /pipeline/main/01/out, to: [/offramp/out/01/in]}
`
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	w, err := New(cfg, f.deps)
	require.NoError(t, err)

	_, done := runWorld(t, w)
	f.source.Feed <- []byte(`{}`)

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rejected")
	case <-time.After(10 * time.Second):
		t.Fatal("world did not stop after pipeline failure")
	}
	assert.Empty(t, f.sink.Records())

	ps, ok := w.Health().Get(w.Pipeline("main").URL().String())
	require.True(t, ok)
	assert.Equal(t, health.StateUnhealthy, ps.State)
	assert.Equal(t, health.StateUnhealthy, w.Health().Aggregate().State)
}

type rejectAll struct{}

func (rejectAll) OnEvent(string, *value.State, event.Event) ([]operator.PortEvent, error) {
	return nil, errors.New("rejected")
}

func TestNew_Failures(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown onramp type", "onramps: [{id: in, type: carrier-pigeon}]\n", errors.ErrUnknownArtefact},
		{"unknown offramp type", "offramps: [{id: out, type: carrier-pigeon}]\n", errors.ErrUnknownArtefact},
		{"unknown operator", "pipelines: [{id: p, nodes: [{id: n, op: nope}]}]\n", errors.ErrUnknownArtefact},
		{"invalid wal config", "pipelines: [{id: p, nodes: [{id: n, op: generic::wal, config: {read_count: 3}}]}]\n", errors.ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cfg, err := config.Parse([]byte(tt.doc))
			require.NoError(t, err)
			_, err = New(cfg, f.deps)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := New(nil, Deps{})
	assert.ErrorIs(t, err, errors.ErrConfig)
}
