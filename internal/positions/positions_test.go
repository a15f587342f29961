package positions

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rewired-gh/putscout/internal/kite"
	"github.com/rewired-gh/putscout/internal/models"
)

type fakeAccount struct {
	positions []models.Position
	orders    []models.Order
	gtts      []models.GTT

	placedGTTs   []kite.GTTRequest
	placedOrders []kite.OrderRequest
	placeErr     error
	positionsErr error
}

func (f *fakeAccount) Positions(context.Context) ([]models.Position, error) {
	return f.positions, f.positionsErr
}

func (f *fakeAccount) Orders(context.Context) ([]models.Order, error) {
	return f.orders, nil
}

func (f *fakeAccount) GTTs(context.Context) ([]models.GTT, error) {
	return f.gtts, nil
}

func (f *fakeAccount) PlaceGTT(_ context.Context, g kite.GTTRequest) (int, error) {
	if f.placeErr != nil {
		return 0, f.placeErr
	}
	f.placedGTTs = append(f.placedGTTs, g)
	return 100 + len(f.placedGTTs), nil
}

func (f *fakeAccount) PlaceOrder(_ context.Context, o kite.OrderRequest) (string, error) {
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.placedOrders = append(f.placedOrders, o)
	return "order-" + o.TradingSymbol, nil
}

func TestCoverNakedPositions(t *testing.T) {
	account := &fakeAccount{
		positions: []models.Position{
			{TradingSymbol: "TCS20OCT2500PE", Quantity: -300},
			{TradingSymbol: "INFY20OCTFUT", Quantity: -300},
			{TradingSymbol: "INFY20OCT900PE", Quantity: -300},
			{TradingSymbol: "RELIANCE20OCT1900PE", Quantity: -505},
			{TradingSymbol: "WIPRO20OCT300PE", Quantity: 0},
			{TradingSymbol: "HDFC20OCT2000PE", Quantity: -300},
			{TradingSymbol: "NIFTY2010820000CE", Quantity: -75},
		},
		gtts: []models.GTT{
			{ID: 1, Condition: models.GTTCondition{TradingSymbol: "HDFC20OCTFUT"}},
		},
	}

	s := New(account, DefaultConfig())
	placed, err := s.CoverNakedPositions(context.Background())
	if err != nil {
		t.Fatalf("CoverNakedPositions: %v", err)
	}

	// INFY is covered by its future, HDFC by an existing GTT, WIPRO is flat.
	if len(account.placedGTTs) != 2 {
		t.Fatalf("placed %d GTTs, want 2: %+v", len(account.placedGTTs), account.placedGTTs)
	}

	g := account.placedGTTs[0]
	if g.Condition.TradingSymbol != "RELIANCE20OCTFUT" {
		t.Errorf("first GTT on %s, want RELIANCE20OCTFUT", g.Condition.TradingSymbol)
	}
	if g.Type != "single" {
		t.Errorf("type = %s", g.Type)
	}
	if len(g.Condition.TriggerValues) != 1 || g.Condition.TriggerValues[0] != 1900 {
		t.Errorf("trigger values = %v", g.Condition.TriggerValues)
	}
	if g.Condition.LastPrice != 2000 {
		t.Errorf("condition last price = %f, want 2000", g.Condition.LastPrice)
	}
	if g.ExpiresAt != "2020-10-30 00:00:00" {
		t.Errorf("expires at = %s", g.ExpiresAt)
	}
	leg := g.Orders[0]
	if leg.TransactionType != models.Sell || leg.Quantity != 505 || leg.Price != 1900 ||
		leg.OrderType != models.OrderTypeLimit || leg.Product != models.ProductNRML || leg.Exchange != models.ExchangeNFO {
		t.Errorf("unexpected order leg: %+v", leg)
	}

	if account.placedGTTs[1].Condition.TradingSymbol != "TCS20OCTFUT" {
		t.Errorf("second GTT on %s, want TCS20OCTFUT", account.placedGTTs[1].Condition.TradingSymbol)
	}

	if len(placed) != 2 || placed[0].ID != "101" || placed[0].Kind != models.PlacementGTT {
		t.Errorf("placements = %+v", placed)
	}
}

func TestCoverNakedPositions_FutureOnlyCoversItsOwnPut(t *testing.T) {
	account := &fakeAccount{
		positions: []models.Position{
			{TradingSymbol: "ACC20OCT1500PE", Quantity: -500},
			{TradingSymbol: "ACC20NOVFUT", Quantity: -500},
		},
	}
	s := New(account, DefaultConfig())
	if _, err := s.CoverNakedPositions(context.Background()); err != nil {
		t.Fatalf("CoverNakedPositions: %v", err)
	}
	if len(account.placedGTTs) != 1 || account.placedGTTs[0].Condition.TradingSymbol != "ACC20OCTFUT" {
		t.Errorf("placed %+v, want one GTT on ACC20OCTFUT", account.placedGTTs)
	}
}

func TestCoverNakedPositions_IgnoresLongPuts(t *testing.T) {
	account := &fakeAccount{
		positions: []models.Position{
			{TradingSymbol: "INFY20OCT900PE", Quantity: 300},
			{TradingSymbol: "SBIN20OCT180PE", Quantity: 1500},
			{TradingSymbol: "TCS20OCT2500PE", Quantity: -300},
		},
	}
	placed, err := New(account, DefaultConfig()).CoverNakedPositions(context.Background())
	if err != nil {
		t.Fatalf("CoverNakedPositions: %v", err)
	}
	if len(placed) != 1 || placed[0].TradingSymbol != "TCS20OCTFUT" {
		t.Errorf("placements = %+v, want one GTT on TCS20OCTFUT", placed)
	}
}

func TestCoverNakedPositions_Errors(t *testing.T) {
	boom := errors.New("boom")

	account := &fakeAccount{positionsErr: boom}
	if _, err := New(account, DefaultConfig()).CoverNakedPositions(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected positions error, got %v", err)
	}

	account = &fakeAccount{
		positions: []models.Position{{TradingSymbol: "INFY20OCT900PE", Quantity: -300}},
		placeErr:  boom,
	}
	if _, err := New(account, DefaultConfig()).CoverNakedPositions(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected placement error, got %v", err)
	}
}

func TestExitProfitablePositions(t *testing.T) {
	account := &fakeAccount{
		positions: []models.Position{
			// 95% of the premium captured
			{TradingSymbol: "INFY20OCT900PE", Exchange: "NFO", Product: "NRML", Quantity: -300, SellPrice: 20, LastPrice: 1},
			// 50% captured
			{TradingSymbol: "TCS20OCT2500PE", Quantity: -300, SellPrice: 20, LastPrice: 10},
			// target reached but an exit is already pending
			{TradingSymbol: "ACC20OCT1500PE", Quantity: -500, SellPrice: 10, LastPrice: 0.5},
			// long option doubled
			{TradingSymbol: "SBIN20OCT200CE", Quantity: 3000, BuyPrice: 2, LastPrice: 4},
			// futures are never exited here
			{TradingSymbol: "INFY20OCTFUT", Quantity: -300, SellPrice: 1000, LastPrice: 10},
			{TradingSymbol: "HDFC20OCT2000PE", Quantity: 0, SellPrice: 20, LastPrice: 0},
		},
		orders: []models.Order{
			{TradingSymbol: "ACC20OCT1500PE", Status: "OPEN"},
			{TradingSymbol: "INFY20OCT900PE", Status: "COMPLETE"},
		},
	}

	s := New(account, DefaultConfig())
	placed, err := s.ExitProfitablePositions(context.Background(), 90)
	if err != nil {
		t.Fatalf("ExitProfitablePositions: %v", err)
	}

	if len(account.placedOrders) != 2 {
		t.Fatalf("placed %d orders, want 2: %+v", len(account.placedOrders), account.placedOrders)
	}

	o := account.placedOrders[0]
	if o.TradingSymbol != "INFY20OCT900PE" || o.TransactionType != models.Buy || o.Quantity != 300 ||
		o.Price != 1 || o.OrderType != models.OrderTypeLimit || o.Product != "NRML" {
		t.Errorf("unexpected exit order: %+v", o)
	}

	o = account.placedOrders[1]
	if o.TradingSymbol != "SBIN20OCT200CE" || o.TransactionType != models.Sell || o.Quantity != 3000 {
		t.Errorf("unexpected exit order: %+v", o)
	}
	if o.Exchange != models.ExchangeNFO || o.Product != models.ProductNRML {
		t.Errorf("expected defaults for exchange and product, got %s/%s", o.Exchange, o.Product)
	}

	if len(placed) != 2 || placed[0].ID != "order-INFY20OCT900PE" || placed[0].Kind != models.PlacementExit {
		t.Errorf("placements = %+v", placed)
	}
}

func TestExpectedProfit(t *testing.T) {
	account := &fakeAccount{
		positions: []models.Position{
			{TradingSymbol: "INFY20OCT900PE", Quantity: -300, PnL: 1500, LastPrice: 5},
			{TradingSymbol: "INFY20OCTFUT", Quantity: -300, PnL: -200, LastPrice: 1000},
			{TradingSymbol: "SBIN20OCT200CE", Quantity: 100, PnL: 50, LastPrice: 3},
		},
	}
	got, err := New(account, DefaultConfig()).ExpectedProfit(context.Background())
	if err != nil {
		t.Fatalf("ExpectedProfit: %v", err)
	}
	want := 1500.0 + 300*5 - 200 + 50
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected profit = %f, want %f", got, want)
	}
}
