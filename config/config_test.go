package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaysonsantos/tremor-runtime/errors"
)

const fullConfig = `
onramps:
  - id: ingest
    type: http
    preprocessors: [lines]
    config:
      port: 8000
pipelines:
  - id: main
    nodes:
      - id: wal
        op: generic::wal
        on_error: fail
        config:
          path: ./wal
          read_count: 5
      - id: pass
        op: passthrough
offramps:
  - id: out
    type: stdout
bindings:
  - from: /onramp/ingest/01/out
    to: [/pipeline/main/01/in]
  - from: /pipeline/main/01/out
    to: [/offramp/out/01/in]
metrics:
  enabled: true
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	require.Len(t, cfg.Onramps, 1)
	assert.Equal(t, "ingest", cfg.Onramps[0].ID)
	assert.Equal(t, DefaultCodec, cfg.Onramps[0].Codec)
	assert.Equal(t, []string{"lines"}, cfg.Onramps[0].Preprocessors)

	p, ok := cfg.Pipeline("main")
	require.True(t, ok)
	assert.Equal(t, DefaultPipelineMailbox, p.Mailbox)
	require.Len(t, p.Nodes, 2)
	assert.Equal(t, OnErrorFail, p.Nodes[0].OnError)
	assert.Equal(t, OnErrorDrop, p.Nodes[1].OnError)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, DefaultMetricsPort, cfg.Metrics.Port)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)

	require.Len(t, cfg.Bindings, 2)
	port, ok := cfg.Bindings[0].To[0].InstancePort()
	require.True(t, ok)
	assert.Equal(t, "in", port)
}

func TestDecodeStrict(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)
	p, _ := cfg.Pipeline("main")

	type walSection struct {
		Path      string `yaml:"path"`
		ReadCount int    `yaml:"read_count"`
		Read      uint64 `yaml:"read"`
	}

	t.Run("decodes over defaults", func(t *testing.T) {
		out := walSection{Read: 1}
		require.NoError(t, DecodeStrict(p.Nodes[0].Config, &out))
		assert.Equal(t, "./wal", out.Path)
		assert.Equal(t, 5, out.ReadCount)
		assert.Equal(t, uint64(1), out.Read)
	})

	t.Run("absent section keeps defaults", func(t *testing.T) {
		out := walSection{Read: 1}
		require.NoError(t, DecodeStrict(p.Nodes[1].Config, &out))
		assert.Equal(t, walSection{Read: 1}, out)
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		var out struct {
			Path string `yaml:"path"`
		}
		err := DecodeStrict(p.Nodes[0].Config, &out)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConfig))
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown top level key", doc: "onramps: []\nwidgets: []\n"},
		{name: "missing id", doc: "onramps: [{type: http}]\n"},
		{name: "duplicate id", doc: "offramps: [{id: a, type: stdout}, {id: a, type: stdout}]\n"},
		{name: "missing type", doc: "offramps: [{id: a}]\n"},
		{name: "bad on_error", doc: "pipelines: [{id: p, nodes: [{id: n, op: passthrough, on_error: retry}]}]\n"},
		{name: "missing op", doc: "pipelines: [{id: p, nodes: [{id: n}]}]\n"},
		{name: "unknown binding source", doc: "pipelines: [{id: p}]\nbindings: [{from: /onramp/x/01/out, to: [/pipeline/p/01/in]}]\n"},
		{name: "unknown binding target", doc: "onramps: [{id: o, type: http}]\nbindings: [{from: /onramp/o/01/out, to: [/pipeline/p/01/in]}]\n"},
		{name: "offramp as source", doc: "offramps: [{id: o, type: stdout}]\nbindings: [{from: /offramp/o/01/out, to: [/offramp/o/01/in]}]\n"},
		{name: "no destinations", doc: "onramps: [{id: o, type: http}]\nbindings: [{from: /onramp/o/01/out, to: []}]\n"},
		{name: "bad url", doc: "onramps: [{id: o, type: http}]\nbindings: [{from: /widget/o, to: []}]\n"},
		{name: "metrics port", doc: "metrics: {enabled: true, port: 70000}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfig) || errors.Is(err, errors.ErrInvalidData), "got %v", err)
		})
	}
}

func TestLoader_Layers(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	override := filepath.Join(dir, "override.yml")

	require.NoError(t, os.WriteFile(base, []byte("metrics: {enabled: false, port: 9000}\nofframps: [{id: out, type: stdout}]\n"), 0o600))
	require.NoError(t, os.WriteFile(override, []byte("metrics: {enabled: true}\n"), 0o600))

	l := NewLoader()
	l.AddLayer(base)
	l.AddLayer(override)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9000, cfg.Metrics.Port)
	require.Len(t, cfg.Offramps, 1)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("TREMOR_METRICS_ENABLED", "true")
	t.Setenv("TREMOR_METRICS_PORT", "9999")

	cfg, err := Parse([]byte("metrics: {enabled: false}\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9999, cfg.Metrics.Port)

	t.Setenv("TREMOR_METRICS_PORT", "nope")
	_, err = Parse(nil)
	require.Error(t, err)
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestReadLayer(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.yml")
	require.NoError(t, os.WriteFile(small, []byte("onramps: []\n"), 0o600))
	large := filepath.Join(dir, "large.yaml")
	require.NoError(t, os.WriteFile(large, make([]byte, MaxFileSize+1), 0o600))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"yml extension", small, false},
		{"empty path", "", true},
		{"nul byte", "a\x00.yaml", true},
		{"directory", dir, true},
		{"missing", filepath.Join(dir, "missing.yaml"), true},
		{"too large", large, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readLayer(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSafeConfig(t *testing.T) {
	sc := NewSafeConfig(nil)
	assert.NotNil(t, sc.Get())

	bad := &Config{Onramps: []OnrampConfig{{}}}
	assert.Error(t, sc.Update(bad))

	good := Default()
	require.NoError(t, sc.Update(good))
	assert.Same(t, good, sc.Get())
}
