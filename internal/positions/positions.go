// Package positions maintains the open book: it covers naked short puts with
// GTT future sells and exits option positions that reached their target.
package positions

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/rewired-gh/putscout/internal/derivative"
	"github.com/rewired-gh/putscout/internal/kite"
	"github.com/rewired-gh/putscout/internal/logger"
	"github.com/rewired-gh/putscout/internal/models"
)

// GTTExpiryLayout is the layout the broker expects for expires_at.
const GTTExpiryLayout = "2006-01-02 15:04:05"

// Account is the slice of the broker API this package needs.
type Account interface {
	Positions(ctx context.Context) ([]models.Position, error)
	Orders(ctx context.Context) ([]models.Order, error)
	GTTs(ctx context.Context) ([]models.GTT, error)
	PlaceGTT(ctx context.Context, g kite.GTTRequest) (int, error)
	PlaceOrder(ctx context.Context, o kite.OrderRequest) (string, error)
}

type Config struct {
	// GTTTriggerOffset is added to the strike to form the condition's
	// last_price. The broker rejects a condition at or below the trigger.
	GTTTriggerOffset float64
}

func DefaultConfig() Config {
	return Config{GTTTriggerOffset: 100}
}

type Service struct {
	account Account
	config  Config
}

func New(account Account, config Config) *Service {
	return &Service{account: account, config: config}
}

type uncovered struct {
	position models.Position
	meta     derivative.Meta
}

// CoverNakedPositions places a GTT future sell at the strike of every short
// put that has no future position and no existing GTT on its future.
func (s *Service) CoverNakedPositions(ctx context.Context) ([]models.Placement, error) {
	positions, err := s.account.Positions(ctx)
	if err != nil {
		return nil, err
	}
	gtts, err := s.account.GTTs(ctx)
	if err != nil {
		return nil, err
	}

	covered := make(map[string]bool, len(gtts))
	for _, g := range gtts {
		covered[g.Condition.TradingSymbol] = true
	}

	sorted := append([]models.Position(nil), positions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TradingSymbol < sorted[j].TradingSymbol
	})

	var naked []uncovered
	for _, p := range sorted {
		if p.Quantity == 0 {
			continue
		}
		meta, err := derivative.Parse(p.TradingSymbol)
		if err != nil {
			logger.Debug("Ignoring position %s: %v", p.TradingSymbol, err)
			continue
		}
		switch meta.Kind {
		case derivative.KindPut:
			if !p.IsShort() {
				continue
			}
			naked = append(naked, uncovered{position: p, meta: meta})
		case derivative.KindFuture:
			for i := len(naked) - 1; i >= 0; i-- {
				if naked[i].meta.FutureSymbol() == p.TradingSymbol {
					naked = append(naked[:i], naked[i+1:]...)
					break
				}
			}
		}
	}

	var placed []models.Placement
	for _, n := range naked {
		future := n.meta.FutureSymbol()
		if covered[future] {
			logger.Info("Found existing GTT for %s, skipping", future)
			continue
		}

		req, err := s.coverRequest(n, future)
		if err != nil {
			return placed, err
		}
		id, err := s.account.PlaceGTT(ctx, req)
		if err != nil {
			return placed, fmt.Errorf("failed to cover %s: %w", n.position.TradingSymbol, err)
		}
		logger.Info("Covered %s with GTT %d on %s at %.2f", n.position.TradingSymbol, id, future, n.meta.Strike)

		leg := req.Orders[0]
		placed = append(placed, models.Placement{
			ID:              strconv.Itoa(id),
			Kind:            models.PlacementGTT,
			TradingSymbol:   future,
			TransactionType: leg.TransactionType,
			Quantity:        leg.Quantity,
			Price:           leg.Price,
		})
	}
	return placed, nil
}

func (s *Service) coverRequest(n uncovered, future string) (kite.GTTRequest, error) {
	expiry, err := derivative.LastThursday(n.meta.Series)
	if err != nil {
		return kite.GTTRequest{}, err
	}
	strike := n.meta.Strike
	return kite.GTTRequest{
		Type: "single",
		Condition: models.GTTCondition{
			Exchange:      models.ExchangeNFO,
			TradingSymbol: future,
			TriggerValues: []float64{strike},
			LastPrice:     strike + s.config.GTTTriggerOffset,
		},
		Orders: []models.GTTOrder{{
			Exchange:        models.ExchangeNFO,
			TradingSymbol:   future,
			TransactionType: models.Sell,
			Quantity:        abs(n.position.Quantity),
			Price:           strike,
			OrderType:       models.OrderTypeLimit,
			Product:         models.ProductNRML,
		}},
		ExpiresAt: expiry.AddDate(0, 0, 1).Format(GTTExpiryLayout),
	}, nil
}

// ExitProfitablePositions closes option positions whose PnL percentage has
// reached threshold with a limit order at the last price. Positions with an
// open order on the same symbol are left alone.
func (s *Service) ExitProfitablePositions(ctx context.Context, threshold float64) ([]models.Placement, error) {
	positions, err := s.account.Positions(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.account.Orders(ctx)
	if err != nil {
		return nil, err
	}

	pending := make(map[string]bool)
	for _, o := range orders {
		if o.IsOpen() {
			pending[o.TradingSymbol] = true
		}
	}

	var placed []models.Placement
	for _, p := range positions {
		if !p.IsOption() || p.Quantity == 0 {
			continue
		}
		if pending[p.TradingSymbol] {
			logger.Debug("%s has an open order, skipping", p.TradingSymbol)
			continue
		}
		pct := p.PnLPercentage()
		if pct < threshold {
			logger.Debug("%s at %.2f%%, below exit threshold %.2f%%", p.TradingSymbol, pct, threshold)
			continue
		}

		side := models.Sell
		if p.IsShort() {
			side = models.Buy
		}
		req := kite.OrderRequest{
			Exchange:        orDefault(p.Exchange, models.ExchangeNFO),
			TradingSymbol:   p.TradingSymbol,
			TransactionType: side,
			OrderType:       models.OrderTypeLimit,
			Product:         orDefault(p.Product, models.ProductNRML),
			Quantity:        abs(p.Quantity),
			Price:           p.LastPrice,
		}
		id, err := s.account.PlaceOrder(ctx, req)
		if err != nil {
			return placed, fmt.Errorf("failed to exit %s: %w", p.TradingSymbol, err)
		}
		logger.Info("Exiting %s at %.2f (%.2f%% captured), order %s", p.TradingSymbol, p.LastPrice, pct, id)

		placed = append(placed, models.Placement{
			ID:              id,
			Kind:            models.PlacementExit,
			TradingSymbol:   p.TradingSymbol,
			TransactionType: side,
			Quantity:        req.Quantity,
			Price:           p.LastPrice,
		})
	}
	return placed, nil
}

// ExpectedProfit is the book's PnL if every short option expires worthless:
// realised and marked PnL plus the premium still left in short options.
func (s *Service) ExpectedProfit(ctx context.Context) (float64, error) {
	positions, err := s.account.Positions(ctx)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, p := range positions {
		total += p.PnL
		if p.IsOption() && p.IsShort() {
			total += p.LastPrice * math.Abs(float64(p.Quantity))
		}
	}
	return total, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
