// Package storage provides a SQLite-backed journal of scan runs, the
// candidates they found and the orders they placed.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/putscout/internal/models"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db      *sql.DB
	maxRuns int
	now     func() time.Time
}

// Run is one journaled invocation.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Stocks       []string
	Candidates   int
	OrdersPlaced int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/putscout/journal.db.
func New(maxRuns int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "putscout", "journal.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return open(db, maxRuns)
}

// open prepares db for the journal. db is closed when preparation fails.
func open(db *sql.DB, maxRuns int) (*Storage, error) {
	s := &Storage{db: db, maxRuns: maxRuns, now: time.Now}
	if err := s.prepare(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) prepare() error {
	s.db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := s.db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := s.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			started_at      INTEGER NOT NULL,
			finished_at     INTEGER NOT NULL DEFAULT 0,
			stocks          TEXT NOT NULL DEFAULT '[]',
			candidates      INTEGER NOT NULL DEFAULT 0,
			orders_placed   INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS candidates (
			run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq             INTEGER NOT NULL,
			tradingsymbol   TEXT NOT NULL,
			underlying      TEXT NOT NULL,
			expiry          TEXT NOT NULL,
			strike          REAL NOT NULL,
			last_price      REAL NOT NULL,
			dip             REAL NOT NULL,
			margin          REAL NOT NULL,
			profit          REAL NOT NULL,
			profit_pct      REAL NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			broker_id        TEXT NOT NULL,
			kind             TEXT NOT NULL,
			tradingsymbol    TEXT NOT NULL,
			side             TEXT NOT NULL,
			quantity         INTEGER NOT NULL,
			price            REAL NOT NULL,
			placed_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_run ON orders(run_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// StartRun records a new run over the given tickers and returns its id.
func (s *Storage) StartRun(stocks []string) (string, error) {
	if stocks == nil {
		stocks = []string{}
	}
	stocksJSON, err := json.Marshal(stocks)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stocks: %w", err)
	}
	id := uuid.NewString()
	if _, err := s.db.Exec(`INSERT INTO runs (id, started_at, stocks) VALUES (?,?,?)`,
		id, s.now().UnixNano(), string(stocksJSON)); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the run with its outcome counts.
func (s *Storage) FinishRun(runID string, candidates, ordersPlaced int) error {
	res, err := s.db.Exec(`UPDATE runs SET finished_at=?, candidates=?, orders_placed=? WHERE id=?`,
		s.now().UnixNano(), candidates, ordersPlaced, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// AddCandidates journals the ranked options of a run.
func (s *Storage) AddCandidates(runID string, options []models.Option) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO candidates
			(run_id, seq, tradingsymbol, underlying, expiry, strike, last_price,
			 dip, margin, profit, profit_pct)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare candidate insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range options {
		var margin, profit, profitPct float64
		if o.Margin != nil {
			margin = o.Margin.Total
		}
		if o.Profit != nil {
			profit, profitPct = o.Profit.Value, o.Profit.Percentage
		}
		if _, err := stmt.Exec(runID, o.SequenceID, o.TradingSymbol, o.Underlying(), o.Expiry,
			o.Strike, o.LastPrice, o.PercentageDip, margin, profit, profitPct); err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", o.TradingSymbol, err)
		}
	}
	return tx.Commit()
}

// AddOrder journals one placement made by a run.
func (s *Storage) AddOrder(runID string, p models.Placement) error {
	_, err := s.db.Exec(`
		INSERT INTO orders
			(run_id, broker_id, kind, tradingsymbol, side, quantity, price, placed_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		runID, p.ID, p.Kind, p.TradingSymbol, p.TransactionType, p.Quantity, p.Price,
		s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// RunOrders returns the placements of a run in placement order.
func (s *Storage) RunOrders(runID string) ([]models.Placement, error) {
	rows, err := s.db.Query(`
		SELECT broker_id, kind, tradingsymbol, side, quantity, price
		FROM orders WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var placements []models.Placement
	for rows.Next() {
		var p models.Placement
		if err := rows.Scan(&p.ID, &p.Kind, &p.TradingSymbol, &p.TransactionType, &p.Quantity, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		placements = append(placements, p)
	}
	return placements, rows.Err()
}

// RecentRuns returns up to k runs, newest first.
func (s *Storage) RecentRuns(k int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, stocks, candidates, orders_placed
		FROM runs ORDER BY started_at DESC LIMIT ?`, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedNano, finishedNano int64
		var stocksJSON string
		if err := rows.Scan(&r.ID, &startedNano, &finishedNano, &stocksJSON, &r.Candidates, &r.OrdersPlaced); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(stocksJSON), &r.Stocks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stocks: %w", err)
		}
		r.StartedAt = time.Unix(0, startedNano)
		if finishedNano != 0 {
			r.FinishedAt = time.Unix(0, finishedNano)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RotateRuns keeps at most maxRuns newest runs by start time.
// Cascading deletes remove their candidates and orders.
func (s *Storage) RotateRuns() error {
	if s.maxRuns <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC LIMIT ?
		)`, s.maxRuns)
	if err != nil {
		return fmt.Errorf("failed to rotate runs: %w", err)
	}
	return nil
}
