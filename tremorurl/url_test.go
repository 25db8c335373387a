package tremorurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     URL
		wantPort bool
		wantErr  bool
	}{
		{
			name:     "full",
			input:    "tremor://localhost/pipeline/main/01/in",
			want:     URL{Host: "localhost", Type: TypePipeline, Artefact: "main", Instance: "01", Port: "in"},
			wantPort: true,
		},
		{
			name:  "no port",
			input: "tremor://localhost/pipeline/main/01",
			want:  URL{Host: "localhost", Type: TypePipeline, Artefact: "main", Instance: "01"},
		},
		{
			name:     "relative",
			input:    "/offramp/out/1/in",
			want:     URL{Host: "localhost", Type: TypeOfframp, Artefact: "out", Instance: "1", Port: "in"},
			wantPort: true,
		},
		{
			name:  "artefact only",
			input: "tremor://node1/onramp/http",
			want:  URL{Host: "node1", Type: TypeOnramp, Artefact: "http"},
		},
		{name: "bad scheme", input: "http://localhost/pipeline/main", wantErr: true},
		{name: "bad type", input: "tremor://localhost/widget/main", wantErr: true},
		{name: "too deep", input: "tremor://localhost/pipeline/a/b/c/d", wantErr: true},
		{name: "empty segment", input: "tremor://localhost/pipeline//b", wantErr: true},
		{name: "query", input: "tremor://localhost/pipeline/a?x=1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			port, ok := got.InstancePort()
			assert.Equal(t, tt.wantPort, ok)
			assert.Equal(t, tt.want.Port, port)
		})
	}
}

func TestString(t *testing.T) {
	raw := "tremor://localhost/pipeline/main/01/in"
	u := MustParse(raw)
	assert.Equal(t, raw, u.String())
	assert.Equal(t, "tremor://localhost/pipeline/main/01", u.Trimmed().String())
	assert.Equal(t, "tremor://localhost/pipeline/main/01/out", u.WithPort("out").String())
}

func TestYAML(t *testing.T) {
	var doc struct {
		To []URL `yaml:"to"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("to: [\"/pipeline/main/01/in\"]"), &doc))
	require.Len(t, doc.To, 1)
	assert.Equal(t, "main", doc.To[0].Artefact)

	require.Error(t, yaml.Unmarshal([]byte("to: [\"/widget/x\"]"), &doc))
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("http://x") })
}
