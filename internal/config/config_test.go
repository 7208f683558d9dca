package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/roster/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultRegistryPageSize, cfg.Registry.PageSize)
	assert.Equal(t, DefaultDetailWorkers, cfg.Detail.Workers)
	assert.Equal(t, 0.85, cfg.Pipeline.FuzzyThreshold)
	assert.Equal(t, "identifier", cfg.Pipeline.DedupeStrategy)
	assert.Equal(t, "detail", cfg.Pipeline.Priority)
	assert.Equal(t, DefaultOutputDir, cfg.Export.Dir)
	assert.Equal(t, []string{"json"}, cfg.Export.Formats)
	assert.True(t, cfg.Export.Checksums)
	assert.False(t, cfg.Places.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)

	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ROSTER_REGISTRY_PAGE_SIZE", "250")
	t.Setenv("ROSTER_PIPELINE_DEDUPE_STRATEGY", "fuzzy")
	t.Setenv("SOCRATA_APP_TOKEN", "tok-abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Registry.PageSize)
	assert.Equal(t, "fuzzy", cfg.Pipeline.DedupeStrategy)
	assert.Equal(t, "tok-abc", cfg.Registry.AppToken)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero page size", func(c *Config) { c.Registry.PageSize = 0 }},
		{"zero workers", func(c *Config) { c.Detail.Workers = 0 }},
		{"threshold too high", func(c *Config) { c.Pipeline.FuzzyThreshold = 1.5 }},
		{"places without key", func(c *Config) { c.Places.Enabled = true; c.Places.APIKey = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)

			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
		})
	}
}

func TestUpdateFromFlags(t *testing.T) {
	cfg := &Config{Output: "json"}
	cfg.UpdateFromFlags(true, false, true, "")

	assert.True(t, cfg.Verbose)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "json", cfg.Output, "empty flag keeps configured output")
}
