package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Artifact roots
	BackendDir      string `envconfig:"BACKEND_DIR" default:"../../backend"`
	FrontendDataDir string `envconfig:"FRONTEND_DATA_DIR" default:"../../frontend/public/data"`

	// Sources
	ProBowlersURL string        `envconfig:"RAS_PRO_BOWLERS_URL" default:"https://ras.football/pro-bowlers-and-ras/"`
	RASSearchURL  string        `envconfig:"RAS_SEARCH_URL" default:"https://ras.football/"`
	PFRBaseURL    string        `envconfig:"PFR_BASE_URL" default:"https://www.pro-football-reference.com"`
	UserAgent     string        `envconfig:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"`
	HTTPTimeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`

	// Courtesy delays between requests
	EnrichDelay        time.Duration `envconfig:"ENRICH_DELAY" default:"1s"`
	ProfileDelay       time.Duration `envconfig:"PROFILE_DELAY" default:"2s"`
	AccoladeDelay      time.Duration `envconfig:"ACCOLADE_DELAY" default:"1s"`
	AccoladeRetries    int           `envconfig:"ACCOLADE_RETRIES" default:"3"`
	AccoladeRetryDelay time.Duration `envconfig:"ACCOLADE_RETRY_DELAY" default:"2s"`

	// Combine scraping
	CombineYears      string `envconfig:"COMBINE_YEARS" default:"2000-2025"`
	CombineSampleSize int    `envconfig:"COMBINE_SAMPLE_SIZE" default:"0"`
	CombineAccolades  bool   `envconfig:"COMBINE_ACCOLADES" default:"true"`

	// Analysis
	ExcludedPositions []string `envconfig:"EXCLUDED_POSITIONS" default:"DB"`
	MinCompleteness   float64  `envconfig:"MIN_COMPLETENESS" default:"0.1"`
	MinRegressionRows int      `envconfig:"MIN_REGRESSION_ROWS" default:"10"`
	MinPositionSize   int      `envconfig:"MIN_POSITION_SIZE" default:"3"`
	TestFraction      float64  `envconfig:"TEST_FRACTION" default:"0.25"`
	RandomSeed        int64    `envconfig:"RANDOM_SEED" default:"42"`
	AliasesFile       string   `envconfig:"ALIASES_FILE" default:""`

	// Database
	EnableDatabase   bool   `envconfig:"ENABLE_DATABASE" default:"false"`
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"rasviz"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"rasviz"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" default:""`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis page cache
	EnableCache   bool          `envconfig:"ENABLE_CACHE" default:"false"`
	RedisHost     string        `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int           `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTLPages time.Duration `envconfig:"CACHE_TTL_PAGES" default:"24h"`

	// Worker
	EnableScheduler bool     `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialRun      bool     `envconfig:"INITIAL_RUN" default:"false"`
	RefreshCron     string   `envconfig:"REFRESH_CRON" default:"0 3 * * 1"`
	ServerPort      int      `envconfig:"SERVER_PORT" default:"8080"`
	CORSOrigins     []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BackendDir == "" {
		return errors.New("BACKEND_DIR is required")
	}
	if c.FrontendDataDir == "" {
		return errors.New("FRONTEND_DATA_DIR is required")
	}
	if c.MinCompleteness < 0 || c.MinCompleteness >= 1 {
		return fmt.Errorf("MIN_COMPLETENESS must be in [0,1), got %v", c.MinCompleteness)
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return fmt.Errorf("TEST_FRACTION must be in (0,1), got %v", c.TestFraction)
	}
	if c.AccoladeRetries < 1 {
		return errors.New("ACCOLADE_RETRIES must be at least 1")
	}
	if _, err := c.CombineYearList(); err != nil {
		return err
	}
	if c.EnableDatabase && c.DatabasePassword == "" {
		return errors.New("DATABASE_PASSWORD is required when ENABLE_DATABASE is set")
	}
	return nil
}

// CombineYearList expands COMBINE_YEARS into the years to scrape, newest first.
// Accepts "2000-2025", "2023,2024" or a mix of both.
func (c *Config) CombineYearList() ([]int, error) {
	return ParseYears(c.CombineYears)
}

// ParseYears parses a year specification into a descending list of unique years.
func ParseYears(spec string) ([]int, error) {
	seen := make(map[int]bool)
	var years []int
	add := func(y int) {
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(lo))
			end, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("invalid year range %q", part)
			}
			if start > end {
				start, end = end, start
			}
			for y := end; y >= start; y-- {
				add(y)
			}
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		add(y)
	}

	if len(years) == 0 {
		return nil, errors.New("COMBINE_YEARS must name at least one year")
	}

	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// MustLoad loads configuration or exits the process on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
