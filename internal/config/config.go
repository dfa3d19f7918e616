// Package config loads the pairdesk YAML configuration and applies
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pairdesk/internal/domain"
	"pairdesk/internal/strategy"
)

// DefaultPath is used when PAIRDESK_CONFIG is unset.
const DefaultPath = "config/pairdesk.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the pairdesk commands.
type Config struct {
	Storage   Storage   `yaml:"storage"`
	Data      Data      `yaml:"data"`
	Alpaca    Alpaca    `yaml:"alpaca"`
	Yahoo     Yahoo     `yaml:"yahoo"`
	Logging   Logging   `yaml:"logging"`
	Screen    Screen    `yaml:"screen"`
	Backtest  Backtest  `yaml:"backtest"`
	Benchmark Benchmark `yaml:"benchmark"`
	Output    Output    `yaml:"output"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Data selects the price source and how it is queried.
type Data struct {
	// Source is one of "yahoo", "alpaca" or "csv".
	Source string `yaml:"source"`
	// CSVDir holds <SYMBOL>.csv files for the csv source.
	CSVDir string `yaml:"csv_dir"`
	// NoCache bypasses the parquet price cache.
	NoCache         bool `yaml:"no_cache"`
	Workers         int  `yaml:"workers"`
	RateLimitPerMin int  `yaml:"rate_limit_per_min"`
	MaxRetries      int  `yaml:"max_retries"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Yahoo configures the Yahoo Finance chart client.
type Yahoo struct {
	BaseURL        string            `yaml:"base_url"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	SymbolMap      map[string]string `yaml:"symbol_map"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Screen configures the correlation and cointegration screen.
type Screen struct {
	Symbols []string `yaml:"symbols"`
	// SymbolsFile lists one symbol per line, appended to Symbols.
	SymbolsFile string `yaml:"symbols_file"`
	StartDate   string `yaml:"start_date"`
	EndDate     string `yaml:"end_date"`
	// TopPairs is how many correlation-ranked pairs are tested.
	TopPairs int `yaml:"top_pairs"`
	// MaxResults stops selection after this many accepted pairs.
	MaxResults     int     `yaml:"max_results"`
	CointThreshold float64 `yaml:"coint_threshold"`
	// MaxLag bounds the ADF lag search; zero picks it from the sample size.
	MaxLag int `yaml:"max_lag"`
	// MinCoverage drops symbols with fewer observations than this fraction
	// of the longest history before aligning.
	MinCoverage float64 `yaml:"min_coverage"`
}

// Backtest configures the pairs backtest.
type Backtest struct {
	Strategy string        `yaml:"strategy"`
	Pairs    []domain.Pair `yaml:"pairs"`
	// FromLatestScreen backtests the pairs selected by the most recent
	// screen run instead of Pairs.
	FromLatestScreen bool                `yaml:"from_latest_screen"`
	StartDate        string              `yaml:"start_date"`
	EndDate          string              `yaml:"end_date"`
	Capital          float64             `yaml:"capital"`
	PairFraction     float64             `yaml:"pair_fraction"`
	Benchmark        string              `yaml:"benchmark"`
	PeriodsPerYear   float64             `yaml:"periods_per_year"`
	RiskFree         float64             `yaml:"risk_free"`
	Workers          int                 `yaml:"workers"`
	Bands            strategy.BandParams `yaml:"bands"`
}

// Benchmark configures the monthly-returns spreadsheet evaluation.
type Benchmark struct {
	File     string  `yaml:"file"`
	Sheet    string  `yaml:"sheet"`
	RiskFree float64 `yaml:"risk_free"`
}

// Output holds artifact locations.
type Output struct {
	Dir            string `yaml:"dir"`
	MonthlyReturns string `yaml:"monthly_returns"`
	PricesDir      string `yaml:"prices_dir"`
}

// Default returns the configuration used for any field the YAML file leaves
// unset.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/pairdesk.db",
		},
		Data: Data{
			Source:          "yahoo",
			CSVDir:          "historical_data",
			Workers:         4,
			RateLimitPerMin: 120,
			MaxRetries:      3,
		},
		Alpaca: Alpaca{
			BaseURL: "https://api.alpaca.markets",
			DataURL: "https://data.alpaca.markets",
			Feed:    "sip",
		},
		Yahoo: Yahoo{
			TimeoutSeconds: 30,
			SymbolMap:      map[string]string{"SPX": "^GSPC"},
		},
		Logging: Logging{Level: "info", Format: "text"},
		Screen: Screen{
			StartDate:      "2011-01-01",
			EndDate:        "2014-01-01",
			TopPairs:       20,
			MaxResults:     20,
			CointThreshold: 0.05,
			MinCoverage:    0.95,
		},
		Backtest: Backtest{
			Strategy:       "band-reversion",
			StartDate:      "2014-01-01",
			EndDate:        "2024-11-01",
			Capital:        1_000_000,
			PairFraction:   0.65,
			Benchmark:      "SCHD",
			PeriodsPerYear: 252,
			RiskFree:       0.02,
			Workers:        4,
			Bands:          strategy.DefaultBandParams(),
		},
		Benchmark: Benchmark{
			Sheet:    "Sheet1",
			RiskFree: 0.02457872419,
		},
		Output: Output{
			Dir:            "output",
			MonthlyReturns: "monthly_returns.csv",
			PricesDir:      "historical_data",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the config file path from PAIRDESK_CONFIG or DefaultPath.
func Path() string {
	if v := os.Getenv("PAIRDESK_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path over Default,
// then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("PAIRDESK_SOURCE"); v != "" {
		cfg.Data.Source = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RISK_FREE_RATE"); v != "" {
		if rf, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Benchmark.RiskFree = rf
		}
	}

	// Standard Alpaca env vars take priority over the names above.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	src := strings.ToLower(c.Data.Source)
	switch src {
	case "yahoo", "csv":
	case "alpaca":
		if c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "" {
			return fmt.Errorf("alpaca.api_key and alpaca.api_secret are required for the alpaca source")
		}
	default:
		return fmt.Errorf("data.source %q is not one of yahoo, alpaca, csv", c.Data.Source)
	}
	if src == "csv" && c.Data.CSVDir == "" {
		return fmt.Errorf("data.csv_dir is required for the csv source")
	}
	if c.Data.Workers < 1 {
		return fmt.Errorf("data.workers must be at least 1")
	}
	if c.Screen.TopPairs < 1 || c.Screen.MaxResults < 1 {
		return fmt.Errorf("screen.top_pairs and screen.max_results must be positive")
	}
	if c.Screen.CointThreshold <= 0 || c.Screen.CointThreshold >= 1 {
		return fmt.Errorf("screen.coint_threshold must be in (0, 1)")
	}
	if c.Screen.MinCoverage < 0 || c.Screen.MinCoverage > 1 {
		return fmt.Errorf("screen.min_coverage must be in [0, 1]")
	}
	if c.Screen.MaxLag < 0 {
		return fmt.Errorf("screen.max_lag must not be negative")
	}
	if c.Backtest.Capital <= 0 {
		return fmt.Errorf("backtest.capital must be positive")
	}
	if c.Backtest.PairFraction <= 0 || c.Backtest.PairFraction > 1 {
		return fmt.Errorf("backtest.pair_fraction must be in (0, 1]")
	}
	if c.Backtest.PairFraction < 1 && c.Backtest.Benchmark == "" {
		return fmt.Errorf("backtest.benchmark is required when pair_fraction is below 1")
	}
	if c.Backtest.PeriodsPerYear <= 0 {
		return fmt.Errorf("backtest.periods_per_year must be positive")
	}
	if err := c.Backtest.Bands.Validate(); err != nil {
		return fmt.Errorf("backtest.bands: %w", err)
	}
	for _, d := range []string{c.Screen.StartDate, c.Screen.EndDate, c.Backtest.StartDate, c.Backtest.EndDate} {
		if _, err := ParseDate(d); err != nil {
			return err
		}
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date. An empty string is the zero time,
// which callers treat as an open bound.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Universe returns the screen universe: Symbols followed by the entries of
// SymbolsFile. Blank lines and lines starting with # are ignored.
func (s Screen) Universe() ([]string, error) {
	out := append([]string(nil), s.Symbols...)
	if s.SymbolsFile == "" {
		return out, nil
	}
	data, err := os.ReadFile(s.SymbolsFile)
	if err != nil {
		return nil, fmt.Errorf("reading symbols file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}
