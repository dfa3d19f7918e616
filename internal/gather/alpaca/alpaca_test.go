package alpaca

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

type fakeBars struct {
	bars  []marketdata.Bar
	errs  []error
	calls int
	req   marketdata.GetBarsRequest
}

func (f *fakeBars) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.req = req
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.bars, nil
}

func TestProviderName(t *testing.T) {
	p := newProvider(&fakeBars{}, Config{})
	if got := p.Name(); got != "alpaca" {
		t.Errorf("Name() = %q, want %q", got, "alpaca")
	}
}

func TestFetchConvertsBars(t *testing.T) {
	fake := &fakeBars{bars: []marketdata.Bar{
		{Timestamp: time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC), Close: 101.5},
		{Timestamp: time.Date(2024, 1, 3, 5, 0, 0, 0, time.UTC), Close: 102.25},
	}}
	p := newProvider(fake, Config{})

	s, err := p.Fetch(context.Background(), "SPY", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if s.Symbol != "SPY" || s.Len() != 2 {
		t.Fatalf("got %s with %d points, want SPY with 2", s.Symbol, s.Len())
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !s.Points[0].Time.Equal(want) {
		t.Errorf("first date = %v, want %v", s.Points[0].Time, want)
	}
	if s.Points[1].Value != 102.25 {
		t.Errorf("second close = %v, want 102.25", s.Points[1].Value)
	}
	if fake.req.Adjustment != marketdata.All {
		t.Errorf("Adjustment = %q, want all", fake.req.Adjustment)
	}
	if fake.req.Feed != "sip" {
		t.Errorf("Feed = %q, want sip", fake.req.Feed)
	}
}

func TestFetchRetries(t *testing.T) {
	fake := &fakeBars{errs: []error{errors.New("boom")}}
	p := newProvider(fake, Config{MaxRetries: 2})
	p.retryDelay = time.Millisecond
	if _, err := p.Fetch(context.Background(), "SPY", time.Time{}, time.Time{}); err != nil {
		t.Fatalf("Fetch returned error after retry: %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("calls = %d, want 2", fake.calls)
	}

	fake = &fakeBars{errs: []error{errors.New("a"), errors.New("b")}}
	p = newProvider(fake, Config{MaxRetries: 1})
	if _, err := p.Fetch(context.Background(), "SPY", time.Time{}, time.Time{}); err == nil {
		t.Error("expected error when retries are exhausted")
	}
}

func TestLatestFinished(t *testing.T) {
	days := []string{"2024-03-11", "2024-03-12", "2024-03-13"}

	before := time.Date(2024, 3, 13, 15, 0, 0, 0, eastern)
	got, err := latestFinished(days, before)
	if err != nil {
		t.Fatal(err)
	}
	if got.Format(time.DateOnly) != "2024-03-12" {
		t.Errorf("during session = %s, want 2024-03-12", got.Format(time.DateOnly))
	}

	after := time.Date(2024, 3, 13, 21, 0, 0, 0, eastern)
	got, err = latestFinished(days, after)
	if err != nil {
		t.Fatal(err)
	}
	if got.Format(time.DateOnly) != "2024-03-13" {
		t.Errorf("after cutoff = %s, want 2024-03-13", got.Format(time.DateOnly))
	}

	if _, err := latestFinished(nil, after); err == nil {
		t.Error("expected error for empty calendar")
	}
}
