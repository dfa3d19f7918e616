// Package csvfile serves price series from a directory of Date,Price CSV
// files, one file per symbol named <SYMBOL>.csv.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"pairdesk/internal/domain"
	"pairdesk/internal/gather"
)

// Name is the provider identifier.
const Name = "csv"

// Compile-time interface check.
var _ gather.Provider = (*Provider)(nil)

// Provider implements gather.Provider over a directory of CSV files.
type Provider struct {
	dir string
}

// New creates a provider reading from dir.
func New(dir string) *Provider {
	return &Provider{dir: dir}
}

// Name returns "csv".
func (p *Provider) Name() string { return Name }

// Fetch reads <dir>/<symbol>.csv and returns the observations within
// [start, end]. A missing file yields an empty series.
func (p *Provider) Fetch(ctx context.Context, symbol string, start, end time.Time) (domain.Series, error) {
	if err := ctx.Err(); err != nil {
		return domain.Series{}, err
	}
	path, err := p.find(symbol)
	if err != nil {
		return domain.Series{}, err
	}
	if path == "" {
		return domain.Series{Symbol: symbol}, nil
	}
	s, err := ReadFile(path, symbol)
	if err != nil {
		return domain.Series{}, err
	}
	return s.Between(start, end), nil
}

// find locates the file for symbol, ignoring case. It returns "" when no
// file exists.
func (p *Provider) find(symbol string) (string, error) {
	exact := filepath.Join(p.dir, symbol+".csv")
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}
	entries, err := os.ReadDir(p.dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", p.dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.EqualFold(name, symbol+".csv") {
			return filepath.Join(p.dir, name), nil
		}
	}
	return "", nil
}

// ReadFile parses the CSV file at path as a price series for symbol.
func ReadFile(path, symbol string) (domain.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Series{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	s, err := Read(f, symbol)
	if err != nil {
		return domain.Series{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return s, nil
}

// Read parses Date,Price rows. Header lines and rows whose date or price do
// not parse are dropped. The result is sorted by date with later duplicates
// replacing earlier ones.
func Read(r io.Reader, symbol string) (domain.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	byDay := make(map[int64]domain.Point)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return domain.Series{}, err
		}
		if len(rec) < 2 {
			continue
		}
		day, ok := parseDate(rec[0])
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			continue
		}
		byDay[day.Unix()] = domain.Point{Time: day, Value: price}
	}

	s := domain.Series{Symbol: symbol, Points: make([]domain.Point, 0, len(byDay))}
	for _, p := range byDay {
		s.Points = append(s.Points, p)
	}
	slices.SortFunc(s.Points, func(a, b domain.Point) int { return a.Time.Compare(b.Time) })
	return s, nil
}

// parseDate accepts an ISO date optionally followed by a time of day.
func parseDate(field string) (time.Time, bool) {
	field = strings.TrimSpace(field)
	if len(field) < len(time.DateOnly) {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, field[:len(time.DateOnly)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
