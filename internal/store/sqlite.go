package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"pairdesk/internal/domain"
	"pairdesk/internal/portfolio"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// ledger tables and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between the pool's connections.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			source     TEXT,
			start_date INTEGER,
			end_date   INTEGER,
			created_at INTEGER NOT NULL,
			note       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_kind_created ON runs(kind, created_at)`,

		`CREATE TABLE IF NOT EXISTS ranked_pairs (
			run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			pair_rank   INTEGER NOT NULL,
			symbol_a    TEXT NOT NULL,
			symbol_b    TEXT NOT NULL,
			correlation REAL,
			PRIMARY KEY (run_id, pair_rank)
		)`,

		`CREATE TABLE IF NOT EXISTS selected_pairs (
			run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			pair_rank    INTEGER NOT NULL,
			symbol_a     TEXT NOT NULL,
			symbol_b     TEXT NOT NULL,
			correlation  REAL,
			adf_p_a      REAL,
			adf_p_b      REAL,
			coint_stat   REAL,
			coint_p      REAL,
			PRIMARY KEY (run_id, pair_rank)
		)`,

		`CREATE TABLE IF NOT EXISTS backtest_summaries (
			run_id            TEXT PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
			start_date        INTEGER,
			end_date          INTEGER,
			start_value       REAL,
			end_value         REAL,
			periods           INTEGER,
			total_return      REAL,
			cagr              REAL,
			annual_return     REAL,
			annual_volatility REAL,
			sharpe            REAL,
			sortino           REAL,
			max_drawdown      REAL,
			skew              REAL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// CreateRun inserts a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, source, start_date, end_date, created_at, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Source, unixDay(run.Start), unixDay(run.End), run.CreatedAt.UnixNano(), run.Note,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, source, start_date, end_date, created_at, note FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// LatestRun returns the most recent run of the given kind.
func (s *SQLiteStore) LatestRun(ctx context.Context, kind string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, source, start_date, end_date, created_at, note FROM runs
		 WHERE kind = ? ORDER BY created_at DESC LIMIT 1`, kind)
	return scanRun(row)
}

// ListRuns returns up to limit runs of the given kind, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, kind string, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, source, start_date, end_date, created_at, note FROM runs
		 WHERE kind = ? ORDER BY created_at DESC LIMIT ?`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r                 Run
		source, note      sql.NullString
		start, end, added sql.NullInt64
	)
	if err := sc.Scan(&r.ID, &r.Kind, &source, &start, &end, &added, &note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.Source = source.String
	r.Note = note.String
	r.Start = fromUnixDay(start)
	r.End = fromUnixDay(end)
	r.CreatedAt = time.Unix(0, added.Int64).UTC()
	return &r, nil
}

// ---------------------------------------------------------------------------
// Screening results
// ---------------------------------------------------------------------------

// SaveRankedPairs stores the correlation ranking of a screen run.
func (s *SQLiteStore) SaveRankedPairs(ctx context.Context, runID string, pairs []domain.RankedPair) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO ranked_pairs (run_id, pair_rank, symbol_a, symbol_b, correlation) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, p := range pairs {
			if _, err := stmt.ExecContext(ctx, runID, i+1, p.A, p.B, p.Correlation); err != nil {
				return fmt.Errorf("insert ranked pair %s: %w", p.Pair, err)
			}
		}
		return nil
	})
}

// SaveSelectedPairs stores the cointegrated pairs of a screen run.
func (s *SQLiteStore) SaveSelectedPairs(ctx context.Context, runID string, pairs []domain.CointegratedPair) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO selected_pairs
			 (run_id, pair_rank, symbol_a, symbol_b, correlation, adf_p_a, adf_p_b, coint_stat, coint_p)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, p := range pairs {
			if _, err := stmt.ExecContext(ctx, runID, i+1, p.A, p.B, p.Correlation,
				p.ADFPValueA, p.ADFPValueB, finiteOrNull(p.CointStat), p.CointPValue); err != nil {
				return fmt.Errorf("insert selected pair %s: %w", p.Pair, err)
			}
		}
		return nil
	})
}

// ListSelectedPairs returns the selected pairs of a run in rank order.
func (s *SQLiteStore) ListSelectedPairs(ctx context.Context, runID string) ([]domain.CointegratedPair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol_a, symbol_b, correlation, adf_p_a, adf_p_b, coint_stat, coint_p
		 FROM selected_pairs WHERE run_id = ? ORDER BY pair_rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("query selected pairs: %w", err)
	}
	defer rows.Close()

	var out []domain.CointegratedPair
	for rows.Next() {
		var (
			p    domain.CointegratedPair
			stat sql.NullFloat64
		)
		if err := rows.Scan(&p.A, &p.B, &p.Correlation, &p.ADFPValueA, &p.ADFPValueB, &stat, &p.CointPValue); err != nil {
			return nil, fmt.Errorf("scan selected pair: %w", err)
		}
		p.CointStat = math.Inf(-1)
		if stat.Valid {
			p.CointStat = stat.Float64
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Backtest results
// ---------------------------------------------------------------------------

// SaveBacktestSummary stores the summary statistics of a backtest run,
// replacing any previous summary for the run.
func (s *SQLiteStore) SaveBacktestSummary(ctx context.Context, runID string, sum portfolio.Summary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO backtest_summaries
		 (run_id, start_date, end_date, start_value, end_value, periods, total_return, cagr,
		  annual_return, annual_volatility, sharpe, sortino, max_drawdown, skew)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, unixDay(sum.Start), unixDay(sum.End), sum.StartValue, sum.EndValue, sum.Periods,
		finiteOrNull(sum.TotalReturn), finiteOrNull(sum.CAGR), finiteOrNull(sum.AnnualReturn),
		finiteOrNull(sum.AnnualVolatility), finiteOrNull(sum.Sharpe), finiteOrNull(sum.Sortino),
		finiteOrNull(sum.MaxDrawdown), finiteOrNull(sum.Skew),
	)
	if err != nil {
		return fmt.Errorf("insert backtest summary: %w", err)
	}
	return nil
}

// GetBacktestSummary retrieves the summary of a backtest run. Statistics
// that were not finite come back as NaN.
func (s *SQLiteStore) GetBacktestSummary(ctx context.Context, runID string) (*portfolio.Summary, error) {
	var (
		sum        portfolio.Summary
		start, end sql.NullInt64
		vals       [8]sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT start_date, end_date, start_value, end_value, periods, total_return, cagr,
		        annual_return, annual_volatility, sharpe, sortino, max_drawdown, skew
		 FROM backtest_summaries WHERE run_id = ?`, runID,
	).Scan(&start, &end, &sum.StartValue, &sum.EndValue, &sum.Periods,
		&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &vals[6], &vals[7])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan backtest summary: %w", err)
	}
	sum.Start = fromUnixDay(start)
	sum.End = fromUnixDay(end)
	dst := []*float64{&sum.TotalReturn, &sum.CAGR, &sum.AnnualReturn, &sum.AnnualVolatility,
		&sum.Sharpe, &sum.Sortino, &sum.MaxDrawdown, &sum.Skew}
	for i, v := range vals {
		*dst[i] = math.NaN()
		if v.Valid {
			*dst[i] = v.Float64
		}
	}
	return &sum, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// finiteOrNull maps NaN and ±Inf to SQL NULL.
func finiteOrNull(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func unixDay(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Unix()
}

func fromUnixDay(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0).UTC()
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
