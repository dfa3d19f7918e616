package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pairdesk.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"DATA_DIR", "SQLITE_PATH", "PAIRDESK_SOURCE", "ALPACA_API_KEY",
		"ALPACA_API_SECRET", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY", "LOG_LEVEL", "RISK_FREE_RATE"} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/pairdesk/data"
data:
  source: "csv"
  csv_dir: "/tmp/prices"
logging:
  level: "debug"
  format: "json"
screen:
  symbols: ["SPY", "QQQ"]
  coint_threshold: 0.07
backtest:
  pairs:
    - {a: "BRK-B", b: "MSFT"}
    - {a: "BZ=F", b: "HO=F"}
  bands:
    window: 30
    width: 2.5
    flat_zone: 0.5
    flat_zone_scaled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/pairdesk/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/pairdesk/data")
	}
	if cfg.Storage.SQLitePath != "data/pairdesk.db" {
		t.Errorf("Storage.SQLitePath = %q, want default", cfg.Storage.SQLitePath)
	}
	if cfg.Data.Source != "csv" || cfg.Data.CSVDir != "/tmp/prices" {
		t.Errorf("Data = %+v, want csv source in /tmp/prices", cfg.Data)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
	if len(cfg.Screen.Symbols) != 2 || cfg.Screen.CointThreshold != 0.07 {
		t.Errorf("Screen = %+v, want 2 symbols at threshold 0.07", cfg.Screen)
	}
	if cfg.Screen.TopPairs != 20 {
		t.Errorf("Screen.TopPairs = %d, want default 20", cfg.Screen.TopPairs)
	}
	if len(cfg.Backtest.Pairs) != 2 || cfg.Backtest.Pairs[1].A != "BZ=F" || cfg.Backtest.Pairs[1].B != "HO=F" {
		t.Errorf("Backtest.Pairs = %v, want [BRK-B-MSFT BZ=F-HO=F]", cfg.Backtest.Pairs)
	}
	b := cfg.Backtest.Bands
	if b.Window != 30 || b.Width != 2.5 || b.FlatZone != 0.5 || !b.FlatZoneScaled {
		t.Errorf("Backtest.Bands = %+v, want overridden values", b)
	}
	if cfg.Backtest.Capital != 1_000_000 || cfg.Backtest.PairFraction != 0.65 {
		t.Errorf("capital split = %v/%v, want defaults", cfg.Backtest.Capital, cfg.Backtest.PairFraction)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "file-key"
`)
	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("APCA_API_SECRET_KEY", "sdk-secret")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("RISK_FREE_RATE", "0.03")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "env-key")
	}
	if cfg.Alpaca.APISecret != "sdk-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q", cfg.Alpaca.APISecret, "sdk-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Benchmark.RiskFree != 0.03 {
		t.Errorf("Benchmark.RiskFree = %v, want 0.03", cfg.Benchmark.RiskFree)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "screen: [unclosed")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown source", func(c *Config) { c.Data.Source = "bloomberg" }},
		{"alpaca without keys", func(c *Config) { c.Data.Source = "alpaca" }},
		{"threshold", func(c *Config) { c.Screen.CointThreshold = 0 }},
		{"pair fraction", func(c *Config) { c.Backtest.PairFraction = 1.5 }},
		{"no benchmark", func(c *Config) { c.Backtest.Benchmark = "" }},
		{"bands", func(c *Config) { c.Backtest.Bands.Window = 1 }},
		{"date", func(c *Config) { c.Backtest.StartDate = "2014/01/01" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}

	cfg := Default()
	cfg.Backtest.Benchmark = ""
	cfg.Backtest.PairFraction = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("pairs-only config: Validate() = %v, want nil", err)
	}
}

func TestUniverse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.txt")
	if err := os.WriteFile(path, []byte("# ETFs\nGLD\n\n SLV \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Screen{Symbols: []string{"SPY"}, SymbolsFile: path}.Universe()
	if err != nil {
		t.Fatalf("Universe() returned error: %v", err)
	}
	want := []string{"SPY", "GLD", "SLV"}
	if len(got) != len(want) {
		t.Fatalf("Universe() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Universe()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestShippedUniverse(t *testing.T) {
	got, err := Screen{SymbolsFile: filepath.Join("..", "..", "config", "universe.txt")}.Universe()
	if err != nil {
		t.Fatalf("Universe() returned error: %v", err)
	}
	if len(got) != 43 {
		t.Errorf("universe has %d symbols, want 43", len(got))
	}
	seen := make(map[string]bool, len(got))
	for _, sym := range got {
		if seen[sym] {
			t.Errorf("duplicate symbol %s", sym)
		}
		seen[sym] = true
	}
	for _, sym := range []string{"SPY", "ARKK", "SCHD", "VWO"} {
		if !seen[sym] {
			t.Errorf("universe is missing %s", sym)
		}
	}
}

func TestPath(t *testing.T) {
	t.Setenv("PAIRDESK_CONFIG", "")
	if got := Path(); got != DefaultPath {
		t.Errorf("Path() = %q, want %q", got, DefaultPath)
	}
	t.Setenv("PAIRDESK_CONFIG", "/etc/pairdesk.yaml")
	if got := Path(); got != "/etc/pairdesk.yaml" {
		t.Errorf("Path() = %q, want /etc/pairdesk.yaml", got)
	}
}
