package offramp

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/metric"
	"github.com/jaysonsantos/tremor-runtime/pipeline"
)

type recordingSink struct {
	mu      sync.Mutex
	records []string
	flushes int
	closed  bool
	failOn  string
}

func (s *recordingSink) Open(context.Context) error { return nil }

func (s *recordingSink) Write(_ event.Event, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && string(data) == s.failOn {
		return errors.New("sink refused")
	}
	s.records = append(s.records, string(data))
	return nil
}

func (s *recordingSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.records...)
}

func newOfframp(t *testing.T, sink Sink, codecName string, m *metric.Metrics) *Offramp {
	t.Helper()
	o, err := New(config.OfframpConfig{ID: "out", Type: "test", Codec: codecName}, sink, Deps{Metrics: m})
	require.NoError(t, err)
	return o
}

func dataEvent(id uint64, v any) pipeline.Event {
	return pipeline.Event{Input: "in", Event: event.New(id, 1, v)}
}

func TestOfframp_EncodesAndWrites(t *testing.T) {
	sink := &recordingSink{}
	o := newOfframp(t, sink, "json", nil)

	o.Handle(dataEvent(0, map[string]any{"a": int64(1)}))
	o.Handle(dataEvent(1, "x"))

	assert.Equal(t, []string{`{"a":1}`, `"x"`}, sink.snapshot())
}

func TestOfframp_UnbatchesBatches(t *testing.T) {
	sink := &recordingSink{}
	o := newOfframp(t, sink, "string", nil)

	batch := event.Batch([]event.Event{event.New(0, 1, "a"), event.New(1, 1, "b"), event.New(2, 1, "c")})
	o.Handle(pipeline.Event{Input: "in", Event: batch})

	assert.Equal(t, []string{"a", "b", "c"}, sink.snapshot())
}

func TestOfframp_FailuresAreCountedNotFatal(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	sink := &recordingSink{failOn: `"bad"`}
	o := newOfframp(t, sink, "json", reg.CoreMetrics())

	o.Handle(dataEvent(0, "ok"))
	o.Handle(dataEvent(1, "bad"))
	o.Handle(dataEvent(2, "ok2"))

	assert.Equal(t, []string{`"ok"`, `"ok2"`}, sink.snapshot())
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CoreMetrics().EventsDropped.WithLabelValues("out", "delivery")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.CoreMetrics().EventsOut.WithLabelValues("out", "out")))
}

func TestOfframp_SignalsFlushSink(t *testing.T) {
	sink := &recordingSink{}
	o := newOfframp(t, sink, "json", nil)

	o.Handle(pipeline.Event{Input: "in", Event: event.Signal(event.KindFlush, 1)})
	assert.Equal(t, 1, sink.flushes)
	assert.Empty(t, sink.snapshot())
}

func TestOfframp_DisconnectAcks(t *testing.T) {
	o := newOfframp(t, &recordingSink{}, "json", nil)
	ack := make(chan struct{})
	o.Handle(pipeline.Disconnect{Ack: ack})

	select {
	case <-ack:
	case <-time.After(time.Second):
		t.Fatal("disconnect not acknowledged")
	}
}

func TestOfframp_RunAndClose(t *testing.T) {
	sink := &recordingSink{}
	o := newOfframp(t, sink, "json", nil)
	require.NoError(t, o.Open(context.Background()))

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	require.NoError(t, o.Addr().TrySend(dataEvent(0, int64(1))))
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	o.Stop()
	require.NoError(t, <-done)
	require.NoError(t, o.Close())
	require.NoError(t, o.Close())
	assert.True(t, sink.closed)
	assert.ErrorIs(t, o.Addr().TrySend(dataEvent(1, int64(2))), errors.ErrMailboxClosed)
}

func TestOfframp_CloseDeliversQueued(t *testing.T) {
	sink := &recordingSink{}
	o := newOfframp(t, sink, "json", nil)

	require.NoError(t, o.Addr().TrySend(dataEvent(0, int64(1))))
	require.NoError(t, o.Addr().TrySend(dataEvent(1, int64(2))))
	require.NoError(t, o.Close())
	assert.Equal(t, []string{"1", "2"}, sink.snapshot())
}

func TestOfframp_UnknownCodec(t *testing.T) {
	_, err := New(config.OfframpConfig{ID: "out", Codec: "nope"}, &recordingSink{}, Deps{})
	assert.ErrorIs(t, err, errors.ErrUnknownArtefact)

	_, err = New(config.OfframpConfig{ID: "out"}, nil, Deps{})
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "> ")
	require.NoError(t, w.Open(context.Background()))
	require.NoError(t, w.Write(event.Event{}, []byte("a")))
	require.NoError(t, w.Write(event.Event{}, []byte("b")))
	require.NoError(t, w.Close())
	assert.Equal(t, "> a\n> b\n", buf.String())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.jsonl")

	t.Run("buffers until buffer_size", func(t *testing.T) {
		f, err := NewFile(FileConfig{Path: path, BufferSize: 2}, nil)
		require.NoError(t, err)
		require.NoError(t, f.Open(context.Background()))

		require.NoError(t, f.Write(event.Event{}, []byte(`{"a":1}`)))
		content, _ := os.ReadFile(path)
		assert.Empty(t, content)

		require.NoError(t, f.Write(event.Event{}, []byte(`{"a":2}`)))
		content, _ = os.ReadFile(path)
		assert.Equal(t, "{\"a\":1}\n{\"a\":2}\n", string(content))

		require.NoError(t, f.Write(event.Event{}, []byte(`{"a":3}`)))
		require.NoError(t, f.Close())
		require.NoError(t, f.Close())
		content, _ = os.ReadFile(path)
		assert.Equal(t, 3, strings.Count(string(content), "\n"))
		assert.Equal(t, int64(3), f.Written())
	})

	t.Run("append keeps content", func(t *testing.T) {
		f, err := NewFile(FileConfig{Path: path, Append: true, BufferSize: 1}, nil)
		require.NoError(t, err)
		require.NoError(t, f.Open(context.Background()))
		require.NoError(t, f.Write(event.Event{}, []byte(`{"a":4}`)))
		require.NoError(t, f.Close())

		content, _ := os.ReadFile(path)
		assert.Equal(t, 4, strings.Count(string(content), "\n"))
	})

	t.Run("truncate replaces content", func(t *testing.T) {
		f, err := NewFile(FileConfig{Path: path, BufferSize: 1}, nil)
		require.NoError(t, err)
		require.NoError(t, f.Open(context.Background()))
		require.NoError(t, f.Close())

		content, _ := os.ReadFile(path)
		assert.Empty(t, content)
	})

	t.Run("periodic flush", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "tick.jsonl")
		f, err := NewFile(FileConfig{Path: p, BufferSize: 100, FlushInterval: 10 * time.Millisecond}, nil)
		require.NoError(t, err)
		require.NoError(t, f.Open(context.Background()))
		defer f.Close()

		require.NoError(t, f.Write(event.Event{}, []byte("x")))
		require.Eventually(t, func() bool {
			content, _ := os.ReadFile(p)
			return string(content) == "x\n"
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("write before open", func(t *testing.T) {
		f, err := NewFile(FileConfig{Path: path}, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, f.Write(event.Event{}, []byte("x")), errors.ErrNotStarted)
	})
}

func TestFileConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     FileConfig
		wantErr bool
	}{
		{"valid", FileConfig{Path: "/tmp/x"}, false},
		{"missing path", FileConfig{}, true},
		{"negative buffer", FileConfig{Path: "/tmp/x", BufferSize: -1}, true},
		{"negative interval", FileConfig{Path: "/tmp/x", FlushInterval: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBlackhole(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	b := NewBlackhole(BlackholeConfig{Warmup: 100}, "bh", reg)
	clock := uint64(1000)
	b.now = func() uint64 { return clock }
	require.NoError(t, b.Open(context.Background()))

	// Inside the warmup window: counted, not measured.
	require.NoError(t, b.Write(event.New(0, 990, "a"), []byte("aa")))
	clock = 2000
	require.NoError(t, b.Write(event.New(1, 1500, "b"), []byte("b")))

	assert.Equal(t, int64(2), b.Count())
	assert.Equal(t, int64(3), b.Bytes())
	assert.Equal(t, 1, testutil.CollectAndCount(b.latency))
	require.NoError(t, b.Close())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{BlackholeType, FileType, StdoutType}, r.Names())

	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("path: /tmp/out.log\nbuffer_size: 5\n"), &node))
	sink, err := r.Create(config.OfframpConfig{ID: "f", Type: FileType, Config: node}, Deps{})
	require.NoError(t, err)
	assert.Equal(t, 5, sink.(*File).cfg.BufferSize)
	assert.True(t, sink.(*File).cfg.Append)

	_, err = r.Create(config.OfframpConfig{ID: "x", Type: "kafka"}, Deps{})
	assert.ErrorIs(t, err, errors.ErrUnknownArtefact)

	var bad yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("pth: /tmp/x\n"), &bad))
	_, err = r.Create(config.OfframpConfig{ID: "f", Type: FileType, Config: bad}, Deps{})
	assert.ErrorIs(t, err, errors.ErrConfig)

	assert.Error(t, r.RegisterFactory(Registration{Name: StdoutType, Factory: newStdoutFromConfig}))
}
