package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log/noop"
)

func TestNewDualCore(t *testing.T) {
	tests := []struct {
		name     string
		stderr   bool
		otel     bool
		provider bool
		wantErr  bool
	}{
		{name: "stderr only", stderr: true},
		{name: "both outputs", stderr: true, otel: true, provider: true},
		{name: "otel only", otel: true, provider: true},
		{name: "otel without provider falls back to stderr", stderr: true, otel: true},
		{name: "otel only without provider", otel: true, wantErr: true},
		{name: "no outputs", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Output.Stderr = tt.stderr
			cfg.Output.OTEL = tt.otel

			var core interface{}
			var err error
			if tt.provider {
				core, err = newDualCore(cfg, noop.NewLoggerProvider())
			} else {
				core, err = newDualCore(cfg, nil)
			}

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "at least one output")
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, core)
		})
	}
}
