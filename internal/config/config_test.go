package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches into a fresh directory so no stray config.yaml or .env is picked up
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with no env vars",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, []string{"http://localhost:8080"}, cfg.Security.AllowedOrigins)
				assert.True(t, cfg.Security.RateLimit.Enabled)
				assert.Equal(t, "console", cfg.Logging.Output)
				assert.Equal(t, DefaultDataset, cfg.Dataset.Path)
				assert.Equal(t, "warn", cfg.Dataset.Validation)
				assert.Equal(t, "en", cfg.Dataset.Locale)
				assert.Empty(t, cfg.Export.Schedule)
				assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
			},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"BIKE_SERVER_PORT":              "9090",
				"BIKE_DATASET_FILE":             "/srv/data/all_data.xlsx",
				"BIKE_DATASET_LOCALE":           "id",
				"BIKE_DATASET_WATCH":            "true",
				"BIKE_EXPORT_SCHEDULE":          "@daily",
				"BIKE_EXPORT_FORMATS":           "csv,png",
				"BIKE_SECURITY_ALLOWED_ORIGINS": "http://a.example,http://b.example",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "/srv/data/all_data.xlsx", cfg.Dataset.Path)
				assert.Equal(t, "id", cfg.Dataset.Locale)
				assert.True(t, cfg.Dataset.Watch)
				assert.Equal(t, "@daily", cfg.Export.Schedule)
				assert.Equal(t, []string{"csv", "png"}, cfg.Export.Formats)
				assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Security.AllowedOrigins)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "unset values keep defaults")
			},
		},
		{
			name: "yaml file overlays defaults and env wins over file",
			file: "server:\n  port: 7000\n  read_timeout: 5s\ndataset:\n  locale: id\n",
			env:  map[string]string{"BIKE_SERVER_PORT": "7100"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7100, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "id", cfg.Dataset.Locale)
				assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"BIKE_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "unsupported locale",
			env:     map[string]string{"BIKE_DATASET_LOCALE": "xx-invalid-!"},
			wantErr: true,
		},
		{
			name:    "unknown validation policy",
			env:     map[string]string{"BIKE_DATASET_VALIDATION": "ignore"},
			wantErr: true,
		},
		{
			name:    "unknown export format",
			env:     map[string]string{"BIKE_EXPORT_FORMATS": "pdf"},
			wantErr: true,
		},
		{
			name:    "malformed env value",
			env:     map[string]string{"BIKE_SERVER_READ_TIMEOUT": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if tt.file != "" {
				path := filepath.Join(dir, "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0644))
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BIKE_SERVER_PORT=8181\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("BIKE_SERVER_PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.Port)
}

func TestValidate_NormalizesLoggingOutput(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "BOTH"
	cfg.Logging.FilePath = ""

	require.NoError(t, cfg.validate())
	assert.Equal(t, "both", cfg.Logging.Output)
	assert.Equal(t, "logs/app.log", cfg.Logging.FilePath)
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.Equal(t, ":8080", cfg.Address())
}
