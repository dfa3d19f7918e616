package source

import (
	"errors"
	"testing"

	"pairdesk/internal/config"
	"pairdesk/internal/gather"
	"pairdesk/internal/store"
)

func TestSources(t *testing.T) {
	cfg := config.Default()
	src := Sources(cfg)
	if _, ok := src["yahoo"]; !ok {
		t.Error("yahoo provider missing")
	}
	if _, ok := src["csv"]; !ok {
		t.Error("csv provider missing")
	}
	if _, ok := src["alpaca"]; ok {
		t.Error("alpaca provider built without credentials")
	}

	cfg.Alpaca.APIKey, cfg.Alpaca.APISecret = "k", "s"
	if _, ok := Sources(cfg)["alpaca"]; !ok {
		t.Error("alpaca provider missing with credentials")
	}
}

func TestOpen(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	prices := store.NewParquetStore(cfg.Storage.DataDir)

	p, closeFn, err := Open(cfg, prices)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer closeFn()
	if _, ok := p.(*gather.CachedProvider); !ok {
		t.Errorf("Open(yahoo) = %T, want cached provider", p)
	}
	if p.Name() != "yahoo" {
		t.Errorf("Name() = %q, want yahoo", p.Name())
	}

	cfg.Data.Source = "csv"
	p, _, err = Open(cfg, prices)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*gather.CachedProvider); ok {
		t.Error("csv source should not be cached")
	}

	cfg.Data.Source = "alpaca"
	if _, _, err := Open(cfg, prices); !errors.Is(err, gather.ErrUnknownSource) {
		t.Errorf("alpaca without credentials: err = %v, want ErrUnknownSource", err)
	}
}
