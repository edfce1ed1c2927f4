package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err, "Defaults should produce a valid configuration")

	assert.Equal(t, []string{"DB"}, cfg.ExcludedPositions, "DB is excluded by default")
	assert.Equal(t, 2*time.Second, cfg.ProfileDelay, "Profile scraping waits 2s between players")
	assert.Equal(t, time.Second, cfg.EnrichDelay)
	assert.Equal(t, 3, cfg.AccoladeRetries)
	assert.Equal(t, int64(42), cfg.RandomSeed)
	assert.InDelta(t, 0.25, cfg.TestFraction, 1e-9)
	assert.InDelta(t, 0.1, cfg.MinCompleteness, 1e-9)

	years, err := cfg.CombineYearList()
	require.NoError(t, err)
	assert.Len(t, years, 26)
	assert.Equal(t, 2025, years[0], "Newest year comes first")
	assert.Equal(t, 2000, years[len(years)-1])
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("EXCLUDED_POSITIONS", "DB,K")
	t.Setenv("COMBINE_YEARS", "2024")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"DB", "K"}, cfg.ExcludedPositions)

	years, err := cfg.CombineYearList()
	require.NoError(t, err)
	assert.Equal(t, []int{2024}, years)
}

func TestRedisAddrAndEnvironment(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", cfg.RedisAddr())
	assert.False(t, cfg.IsDevelopment())

	cfg.AppEnv = "development"
	assert.True(t, cfg.IsDevelopment())
}

func TestParseYears(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []int
		wantErr bool
	}{
		{name: "range", spec: "2021-2023", want: []int{2023, 2022, 2021}},
		{name: "reversed range", spec: "2023-2021", want: []int{2023, 2022, 2021}},
		{name: "list", spec: "2019, 2024", want: []int{2024, 2019}},
		{name: "mixed with duplicates", spec: "2020-2021,2021,2018", want: []int{2021, 2020, 2018}},
		{name: "garbage", spec: "twenty", wantErr: true},
		{name: "bad range", spec: "2020-x", wantErr: true},
		{name: "empty", spec: " , ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseYears(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			BackendDir:      "backend",
			FrontendDataDir: "frontend",
			MinCompleteness: 0.1,
			TestFraction:    0.25,
			AccoladeRetries: 3,
			CombineYears:    "2024",
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.TestFraction = 1
	assert.Error(t, cfg.Validate(), "A test fraction of 1 leaves nothing to train on")

	cfg = base()
	cfg.EnableDatabase = true
	assert.Error(t, cfg.Validate(), "Database needs a password when enabled")

	cfg = base()
	cfg.BackendDir = ""
	assert.Error(t, cfg.Validate())
}
