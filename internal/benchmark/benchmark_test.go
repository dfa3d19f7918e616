package benchmark

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "monthly.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save temp workbook: %v", err)
	}
	return path
}

func TestReadMonthlyReturns(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Index", "Time Period", "Return %"},
		{"SPX", "2014-03-31", 3},
		{"SPX", time.Date(2014, 1, 31, 0, 0, 0, 0, time.UTC), 1},
		{"SPX", "02/28/2014", "-2%"},
		{"SPX", "not a date", 4},
		{"SPX", "2014-04-30", "n/a"},
		{"SPX", "2014-05-31"},
	})

	s, dropped, err := ReadMonthlyReturns(path, "Sheet1")
	if err != nil {
		t.Fatalf("ReadMonthlyReturns returned error: %v", err)
	}
	if dropped != 3 {
		t.Errorf("dropped = %d, want 3", dropped)
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	want := []float64{0.01, -0.02, 0.03}
	for i, w := range want {
		if math.Abs(s.Points[i].Value-w) > 1e-12 {
			t.Errorf("return[%d] = %v, want %v", i, s.Points[i].Value, w)
		}
	}
	if got := s.First().Time.Format(time.DateOnly); got != "2014-01-31" {
		t.Errorf("first date = %s, want 2014-01-31", got)
	}
}

func TestReadMonthlyReturnsErrors(t *testing.T) {
	if _, _, err := ReadMonthlyReturns(filepath.Join(t.TempDir(), "missing.xlsx"), "Sheet1"); err == nil {
		t.Error("expected error for missing file")
	}
	path := writeWorkbook(t, [][]any{{"Date", "Return"}})
	if _, _, err := ReadMonthlyReturns(path, "Sheet1"); err == nil {
		t.Error("expected error for missing columns")
	}
}

func TestEvaluate(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Time Period", "Return %"},
		{"2013-12-31", 50},
		{"2014-01-31", 1},
		{"2014-02-28", -2},
		{"2014-03-31", 3},
		{"2014-04-30", -1},
	})
	s, _, err := ReadMonthlyReturns(path, "Sheet1")
	if err != nil {
		t.Fatal(err)
	}

	st, err := Evaluate(s, time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), 0.02457872419)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if st.Months != 4 {
		t.Errorf("Months = %d, want 4", st.Months)
	}
	growth := 1.01 * 0.98 * 1.03 * 0.99
	wantAnn := math.Pow(growth, 3) - 1
	checks := []struct {
		name      string
		got, want float64
	}{
		{"AnnualizedReturn", st.AnnualizedReturn, wantAnn},
		{"CAGR", st.CAGR, wantAnn},
		{"StdDev", st.StdDev, math.Sqrt(0.0059)},
		{"Sharpe", st.Sharpe, (wantAnn - 0.02457872419) / math.Sqrt(0.0059)},
		{"Sortino", st.Sortino, (wantAnn - 0.02457872419) / math.Sqrt(0.0006)},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if _, err := Evaluate(s, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{}, 0); !errors.Is(err, ErrNoReturns) {
		t.Errorf("err = %v, want ErrNoReturns", err)
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.5", 1.5, true},
		{" -2.25% ", -2.25, true},
		{"1,234.5", 1234.5, true},
		{"", 0, false},
		{"NaN", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePercent(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parsePercent(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
