package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/putscout/internal/models"
)

func newTestStorage(t *testing.T, maxRuns int) *Storage {
	t.Helper()
	s, err := New(maxRuns, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// tick makes s.now advance one second per call.
func tick(s *Storage, start time.Time) {
	n := 0
	s.now = func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Second)
	}
}

func testCandidates() []models.Option {
	return []models.Option{
		{
			TradingSymbol: "TCS20OCT1800PE", UnderlyingInstrument: "TCS", Expiry: "2020-10-29",
			Strike: 1800, LastPrice: 20, PercentageDip: 10, SequenceID: 1,
			Margin: &models.Margin{Total: 10000}, Profit: &models.Profit{Value: 1000, Percentage: 10},
		},
		{
			TradingSymbol: "INFY20OCT950PE", UnderlyingInstrument: "INFY", Expiry: "2020-10-29",
			Strike: 950, LastPrice: 10, PercentageDip: 5, SequenceID: 2,
			Margin: &models.Margin{Total: 20000}, Profit: &models.Profit{Value: 1000, Percentage: 5},
		},
	}
}

func TestStorage_RunLifecycle(t *testing.T) {
	s := newTestStorage(t, 10)
	tick(s, time.Date(2020, 10, 1, 9, 15, 0, 0, time.UTC))

	id, err := s.StartRun([]string{"INFY", "TCS"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if id == "" {
		t.Fatal("empty run id")
	}
	if err := s.AddCandidates(id, testCandidates()); err != nil {
		t.Fatalf("AddCandidates: %v", err)
	}
	if err := s.AddOrder(id, models.Placement{ID: "101", Kind: models.PlacementGTT, TradingSymbol: "INFY20OCTFUT",
		TransactionType: models.Sell, Quantity: 300, Price: 900}); err != nil {
		t.Fatalf("AddOrder: %v", err)
	}
	if err := s.AddOrder(id, models.Placement{ID: "230001", Kind: models.PlacementEntry, TradingSymbol: "TCS20OCT1800PE",
		TransactionType: models.Sell, Quantity: 50, Price: 20}); err != nil {
		t.Fatalf("AddOrder: %v", err)
	}
	if err := s.FinishRun(id, 2, 2); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := s.RecentRuns(5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != id || r.Candidates != 2 || r.OrdersPlaced != 2 {
		t.Errorf("unexpected run: %+v", r)
	}
	if len(r.Stocks) != 2 || r.Stocks[0] != "INFY" {
		t.Errorf("stocks = %v", r.Stocks)
	}
	if !r.FinishedAt.After(r.StartedAt) {
		t.Errorf("finished %v not after started %v", r.FinishedAt, r.StartedAt)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM candidates WHERE run_id = ?`, id).Scan(&n); err != nil {
		t.Fatalf("count candidates: %v", err)
	}
	if n != 2 {
		t.Errorf("got %d candidates, want 2", n)
	}

	orders, err := s.RunOrders(id)
	if err != nil {
		t.Fatalf("RunOrders: %v", err)
	}
	if len(orders) != 2 || orders[0].Kind != models.PlacementGTT || orders[1].ID != "230001" {
		t.Errorf("orders = %+v", orders)
	}
}

func TestStorage_FinishRun_NotFound(t *testing.T) {
	s := newTestStorage(t, 10)
	if err := s.FinishRun("nonexistent", 0, 0); err == nil {
		t.Error("expected error for missing run")
	}
}

func TestStorage_AddCandidates_UnknownRun(t *testing.T) {
	s := newTestStorage(t, 10)
	if err := s.AddCandidates("nonexistent", testCandidates()); err == nil {
		t.Error("expected foreign key error")
	}
}

func TestStorage_AddCandidates_DuplicateSequence(t *testing.T) {
	s := newTestStorage(t, 10)
	id, err := s.StartRun(nil)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	dup := testCandidates()
	dup[1].SequenceID = 1
	if err := s.AddCandidates(id, dup); err == nil {
		t.Fatal("expected error for duplicate sequence")
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM candidates`).Scan(&n); err != nil {
		t.Fatalf("count candidates: %v", err)
	}
	if n != 0 {
		t.Errorf("failed batch left %d rows behind", n)
	}
}

func TestStorage_RotateRuns(t *testing.T) {
	s := newTestStorage(t, 3)
	tick(s, time.Now())

	var ids []string
	for i := 0; i < 6; i++ {
		id, err := s.StartRun([]string{fmt.Sprintf("S%d", i)})
		if err != nil {
			t.Fatalf("StartRun %d: %v", i, err)
		}
		if err := s.AddCandidates(id, testCandidates()); err != nil {
			t.Fatalf("AddCandidates %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	if err := s.RotateRuns(); err != nil {
		t.Fatalf("RotateRuns: %v", err)
	}

	runs, err := s.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs after rotation, want 3", len(runs))
	}
	// Newest first
	for i, r := range runs {
		if r.ID != ids[5-i] {
			t.Errorf("run %d = %s, want %s", i, r.ID, ids[5-i])
		}
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM candidates`).Scan(&n); err != nil {
		t.Fatalf("count candidates: %v", err)
	}
	if n != 6 {
		t.Errorf("got %d candidates after cascade, want 6", n)
	}
}

func TestStorage_RecentRuns_Limit(t *testing.T) {
	s := newTestStorage(t, 10)
	tick(s, time.Now())
	for i := 0; i < 4; i++ {
		if _, err := s.StartRun(nil); err != nil {
			t.Fatalf("StartRun: %v", err)
		}
	}
	runs, err := s.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("got %d runs, want 2", len(runs))
	}
}

func TestStorage_DefaultPath(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	s, err := New(10, "")
	if err != nil {
		t.Fatalf("New with empty path: %v", err)
	}
	defer s.Close()
}

func TestStorage_New_DirectoryPath(t *testing.T) {
	if _, err := New(10, t.TempDir()); err == nil {
		t.Fatal("expected error opening a directory as the journal")
	}
}

func TestStorage_FailedOpenClosesDatabase(t *testing.T) {
	db, err := sql.Open("sqlite", t.TempDir())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := open(db, 10); err == nil {
		t.Fatal("expected error preparing a directory as the journal")
	}
	if err := db.Ping(); err == nil || !strings.Contains(err.Error(), "database is closed") {
		t.Errorf("Ping after failed open = %v, want database is closed", err)
	}
}
