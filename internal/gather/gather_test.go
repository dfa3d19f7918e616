package gather

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pairdesk/internal/domain"
	"pairdesk/internal/store"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeProvider returns canned series and counts calls per symbol.
type fakeProvider struct {
	mu     sync.Mutex
	series map[string]domain.Series
	fail   map[string]error
	calls  map[string]int
}

func newFake() *fakeProvider {
	return &fakeProvider{
		series: make(map[string]domain.Series),
		fail:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Fetch(_ context.Context, symbol string, start, end time.Time) (domain.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	if err := f.fail[symbol]; err != nil {
		return domain.Series{}, err
	}
	return f.series[symbol].Between(start, end), nil
}

func daily(sym string, n int, values ...float64) domain.Series {
	s := domain.Series{Symbol: sym}
	for i := 0; i < n; i++ {
		v := 100 + float64(i)
		if i < len(values) {
			v = values[i]
		}
		s.Points = append(s.Points, domain.Point{Time: day0.AddDate(0, 0, i), Value: v})
	}
	return s
}

func TestFetchAll(t *testing.T) {
	p := newFake()
	p.series["SPY"] = daily("SPY", 5)
	p.series["QQQ"] = daily("QQQ", 5, math.NaN(), -1)

	got, report, err := FetchAll(context.Background(), p, []string{"spy", "QQQ", "SPY", " ", "EMPTY"},
		DateRange{Start: day0}, FetchOptions{Workers: 2})
	if err != nil {
		t.Fatalf("FetchAll returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d series, want 2", len(got))
	}
	if p.calls["SPY"] != 1 {
		t.Errorf("SPY fetched %d times, want 1", p.calls["SPY"])
	}
	if got["QQQ"].Len() != 3 {
		t.Errorf("QQQ Len() = %d, want 3 after cleaning", got["QQQ"].Len())
	}
	if len(report.Empty) != 1 || report.Empty[0] != "EMPTY" {
		t.Errorf("Empty = %v, want [EMPTY]", report.Empty)
	}
}

func TestFetchAllFailures(t *testing.T) {
	p := newFake()
	p.series["SPY"] = daily("SPY", 3)
	boom := errors.New("boom")
	p.fail["BAD"] = boom

	if _, _, err := FetchAll(context.Background(), p, []string{"SPY", "BAD"}, DateRange{}, FetchOptions{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}

	got, report, err := FetchAll(context.Background(), p, []string{"SPY", "BAD"}, DateRange{}, FetchOptions{SkipFailures: true})
	if err != nil {
		t.Fatalf("FetchAll with SkipFailures returned error: %v", err)
	}
	if _, ok := got["SPY"]; !ok || len(got) != 1 {
		t.Errorf("got %v, want only SPY", got)
	}
	if !errors.Is(report.Failed["BAD"], boom) {
		t.Errorf("Failed[BAD] = %v, want boom", report.Failed["BAD"])
	}
}

func TestSourcesGet(t *testing.T) {
	p := newFake()
	src := Sources{"fake": p}
	if got, err := src.Get("FAKE"); err != nil || got != p {
		t.Errorf("Get(FAKE) = %v, %v; want fake provider", got, err)
	}
	if _, err := src.Get("nope"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("err = %v, want ErrUnknownSource", err)
	}
}

func TestEmptyTracker(t *testing.T) {
	dir := t.TempDir()
	tr, err := newEmptyTracker(dir, "2024-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.MarkEmpty("ZZZ"); err != nil {
		t.Fatal(err)
	}
	tr.Close()

	tr, err = newEmptyTracker(dir, "2024-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if !tr.IsTriedEmpty("ZZZ") {
		t.Error("same day: ZZZ should be tried-empty")
	}
	tr.Close()

	tr, err = newEmptyTracker(dir, "2024-01-03")
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	if tr.IsTriedEmpty("ZZZ") {
		t.Error("next day: ZZZ should be retried")
	}
	data, err := os.ReadFile(filepath.Join(dir, ".tried-empty"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# 2024-01-03\n") {
		t.Errorf("tracker header = %q, want new date", string(data))
	}
}

func TestCachedProvider(t *testing.T) {
	dir := t.TempDir()
	st := store.NewParquetStore(dir)
	up := newFake()
	up.series["SPY"] = daily("SPY", 30)

	c, err := NewCachedProvider(up, st, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	c.now = func() time.Time { return day0.AddDate(0, 0, 29) }

	ctx := context.Background()
	end := day0.AddDate(0, 0, 29)
	first, err := c.Fetch(ctx, "SPY", day0, end)
	if err != nil {
		t.Fatalf("first Fetch returned error: %v", err)
	}
	second, err := c.Fetch(ctx, "SPY", day0, end)
	if err != nil {
		t.Fatalf("second Fetch returned error: %v", err)
	}
	if up.calls["SPY"] != 1 {
		t.Errorf("upstream calls = %d, want 1 (second served from cache)", up.calls["SPY"])
	}
	if first.Len() != 30 || second.Len() != 30 {
		t.Errorf("lengths = %d, %d, want 30", first.Len(), second.Len())
	}

	// A range beyond the cached data goes upstream again.
	if _, err := c.Fetch(ctx, "SPY", day0, end.AddDate(0, 0, 20)); err != nil {
		t.Fatal(err)
	}
	if up.calls["SPY"] != 2 {
		t.Errorf("upstream calls = %d, want 2", up.calls["SPY"])
	}

	// Empty symbols are asked once per day.
	for i := 0; i < 2; i++ {
		s, err := c.Fetch(ctx, "NONE", day0, end)
		if err != nil || !s.Empty() {
			t.Fatalf("Fetch(NONE) = %d points, %v; want empty", s.Len(), err)
		}
	}
	if up.calls["NONE"] != 1 {
		t.Errorf("upstream calls for NONE = %d, want 1", up.calls["NONE"])
	}
}

func TestCachedProviderEmptyIsPerRange(t *testing.T) {
	dir := t.TempDir()
	up := newFake()
	listed := domain.Series{Symbol: "NEW"}
	for i := 100; i < 130; i++ {
		listed.Points = append(listed.Points, domain.Point{Time: day0.AddDate(0, 0, i), Value: float64(i)})
	}
	up.series["NEW"] = listed

	c, err := NewCachedProvider(up, store.NewParquetStore(dir), dir)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	c.now = func() time.Time { return day0.AddDate(0, 0, 129) }

	ctx := context.Background()
	early, err := c.Fetch(ctx, "NEW", day0, day0.AddDate(0, 0, 50))
	if err != nil || !early.Empty() {
		t.Fatalf("early Fetch = %d points, %v; want empty", early.Len(), err)
	}
	late, err := c.Fetch(ctx, "NEW", day0.AddDate(0, 0, 100), day0.AddDate(0, 0, 129))
	if err != nil {
		t.Fatal(err)
	}
	if late.Len() != 30 {
		t.Errorf("late Fetch = %d points, want 30", late.Len())
	}
	if up.calls["NEW"] != 2 {
		t.Errorf("upstream calls = %d, want 2", up.calls["NEW"])
	}

	// The empty early range is still remembered.
	if _, err := c.Fetch(ctx, "NEW", day0, day0.AddDate(0, 0, 50)); err != nil {
		t.Fatal(err)
	}
	if up.calls["NEW"] != 2 {
		t.Errorf("upstream calls after repeat = %d, want 2", up.calls["NEW"])
	}
}

func TestCachedProviderRefetchesInteriorGap(t *testing.T) {
	dir := t.TempDir()
	up := newFake()
	up.series["SPY"] = daily("SPY", 400)

	c, err := NewCachedProvider(up, store.NewParquetStore(dir), dir)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	c.now = func() time.Time { return day0.AddDate(0, 0, 399) }

	ctx := context.Background()
	if _, err := c.Fetch(ctx, "SPY", day0, day0.AddDate(0, 0, 50)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Fetch(ctx, "SPY", day0.AddDate(0, 0, 300), day0.AddDate(0, 0, 399)); err != nil {
		t.Fatal(err)
	}

	full, err := c.Fetch(ctx, "SPY", day0, day0.AddDate(0, 0, 399))
	if err != nil {
		t.Fatal(err)
	}
	if full.Len() != 400 {
		t.Errorf("full Fetch = %d points, want 400", full.Len())
	}
	if up.calls["SPY"] != 3 {
		t.Errorf("upstream calls = %d, want 3", up.calls["SPY"])
	}

	// The merged cache now serves the whole range.
	if _, err := c.Fetch(ctx, "SPY", day0, day0.AddDate(0, 0, 399)); err != nil {
		t.Fatal(err)
	}
	if up.calls["SPY"] != 3 {
		t.Errorf("upstream calls after merge = %d, want 3", up.calls["SPY"])
	}
}
