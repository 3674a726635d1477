package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{
			name:   "no sources",
			mutate: func(c *Config) { c.Sources = nil },
			want:   ErrNoSources,
		},
		{
			name:   "source without name",
			mutate: func(c *Config) { c.Sources[0].Name = "" },
			want:   ErrSourceMissingName,
		},
		{
			name:   "source without url",
			mutate: func(c *Config) { c.Sources[0].URL = "" },
			want:   ErrSourceMissingURL,
		},
		{
			name:   "unknown kind",
			mutate: func(c *Config) { c.Sources[0].Kind = "imap" },
			want:   ErrUnknownSourceKind,
		},
		{
			name: "scrape source without row selector",
			mutate: func(c *Config) {
				c.Sources[0].Kind = KindPaginated
				c.Sources[0].Selectors = SelectorConfig{}
			},
			want: ErrMissingRowSel,
		},
		{
			name:   "bad cutoff date",
			mutate: func(c *Config) { c.Ingest.CutoffDate = "June 1st" },
			want:   ErrBadCutoffDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/override.db
ingest:
  workers: 7
  cutoffDate: "2024-01-15"
llm:
  model: gemini-2.5-pro
`), 0o600))
	t.Setenv("AMLWATCH_CONFIG", path)
	t.Setenv("AMLWATCH_DB_PATH", "")

	cfg := Load()

	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, 7, cfg.Ingest.Workers)
	assert.Equal(t, "2024-01-15", cfg.Ingest.CutoffDate)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)

	// Untouched fields keep their defaults, sources included.
	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.Equal(t, time.Second, cfg.Ingest.PageDelay)
	assert.NotEmpty(t, cfg.Sources)
}

func TestHeuristicToggleOffViaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
extractor:
  heuristicFallback: false
`), 0o600))
	t.Setenv("AMLWATCH_CONFIG", path)

	cfg := Load()

	assert.False(t, cfg.Extractor.FallbackEnabled(), "file must be able to disable the fallback on its own")
	assert.Equal(t, 4000, cfg.Extractor.MaxChars, "untouched extractor fields keep their defaults")
}

func TestMaxCharsOverrideKeepsFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
extractor:
  maxChars: 2000
`), 0o600))
	t.Setenv("AMLWATCH_CONFIG", path)

	cfg := Load()

	assert.Equal(t, 2000, cfg.Extractor.MaxChars)
	assert.True(t, cfg.Extractor.FallbackEnabled(), "maxChars alone must not touch the fallback toggle")
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("AMLWATCH_CONFIG", "")
	t.Setenv("AMLWATCH_DB_PATH", "/tmp/env.db")
	t.Setenv("AMLWATCH_LLM_API_KEY", "key-from-env")

	cfg := Load()

	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, "key-from-env", cfg.LLM.APIKey)
}

func TestGeminiKeyIsFallback(t *testing.T) {
	t.Setenv("AMLWATCH_CONFIG", "")
	t.Setenv("AMLWATCH_LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	cfg := Load()
	assert.Equal(t, "gemini-key", cfg.LLM.APIKey)
}

func TestCutoffParses(t *testing.T) {
	cfg := Default()
	cfg.Ingest.CutoffDate = "2025-06-01"
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), cfg.Ingest.Cutoff())
}
