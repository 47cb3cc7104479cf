package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/coursequiz/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32 `validate:"required,min=1,max=65535"`
	}

	Database struct {
		Driver string `validate:"required,oneof=postgres sqlite"`
		DSN    string
	}

	Quiz struct {
		CacheTTL     time.Duration
		GateFailOpen bool
	}
}

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		file    string
		env     map[string]string
		wantErr string
		assert  func(t *testing.T, c testConfig)
	}{
		"should read values from file and keep defaults": {
			file: `
http:
  port: 8080
database:
  driver: sqlite
  dsn: file:quiz.db
`,
			assert: func(t *testing.T, c testConfig) {
				assert.EqualValues(t, 8080, c.HTTP.Port)
				assert.Equal(t, "sqlite", c.Database.Driver)
				assert.Equal(t, "file:quiz.db", c.Database.DSN)
				assert.Equal(t, 10*time.Minute, c.Quiz.CacheTTL, "default should be kept")
				assert.True(t, c.Quiz.GateFailOpen, "default should be kept")
			},
		},

		"environment should override file": {
			file: `
http:
  port: 8080
database:
  driver: sqlite
`,
			env: map[string]string{"DATABASE_DRIVER": "postgres"},
			assert: func(t *testing.T, c testConfig) {
				assert.Equal(t, "postgres", c.Database.Driver)
			},
		},

		"unknown driver should fail validation": {
			file: `
http:
  port: 8080
database:
  driver: mysql
`,
			wantErr: "invalid config",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			p := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(p, []byte(tt.file), 0o600))

			var c testConfig
			c.Quiz.CacheTTL = 10 * time.Minute
			c.Quiz.GateFailOpen = true

			err := config.Load(p, &c)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			tt.assert(t, c)
		})
	}
}
