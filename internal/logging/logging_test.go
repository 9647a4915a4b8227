package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "default config is valid",
			config: *NewDefaultConfig(),
		},
		{
			name:   "console format",
			config: Config{Level: "debug", Format: "console"},
		},
		{
			name:    "unknown format",
			config:  Config{Level: "info", Format: "xml"},
			wantErr: "format must be",
		},
		{
			name:    "unknown level",
			config:  Config{Level: "loud", Format: "json"},
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		logger, err := New(nil, "fieldtag-test")
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		_, err := New(&Config{Level: "info", Format: "nope"}, "")
		require.Error(t, err)
	})

	t.Run("sync tolerates stdout", func(t *testing.T) {
		logger, err := New(NewDefaultConfig(), "")
		require.NoError(t, err)
		logger.Info("probe")
		assert.NoError(t, Sync(logger))
	})
}
