// Package trader places entry orders for options picked by the operator.
package trader

import (
	"context"
	"fmt"

	"github.com/rewired-gh/putscout/internal/kite"
	"github.com/rewired-gh/putscout/internal/logger"
	"github.com/rewired-gh/putscout/internal/models"
)

// PriceSource refreshes an option's price before ordering.
type PriceSource interface {
	OptionLastPrice(ctx context.Context, tradingSymbol, underlying string) (float64, bool, error)
}

// OrderPlacer submits regular orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, o kite.OrderRequest) (string, error)
}

type Trader struct {
	prices PriceSource
	orders OrderPlacer
}

func New(prices PriceSource, orders OrderPlacer) *Trader {
	return &Trader{prices: prices, orders: orders}
}

// SellOption sells one lot of the option with a limit at its current price.
// When the chain no longer lists the option the scanned price is used.
func (t *Trader) SellOption(ctx context.Context, option models.Option) (models.Placement, error) {
	qty := int(option.LotSize)
	if qty <= 0 {
		return models.Placement{}, fmt.Errorf("invalid lot size %v for %s", option.LotSize, option.TradingSymbol)
	}

	price, ok, err := t.prices.OptionLastPrice(ctx, option.TradingSymbol, option.Underlying())
	if err != nil {
		return models.Placement{}, fmt.Errorf("failed to refresh price of %s: %w", option.TradingSymbol, err)
	}
	if !ok {
		logger.Warn("%s missing from chain, using scanned price %.2f", option.TradingSymbol, option.LastPrice)
		price = option.LastPrice
	}

	id, err := t.orders.PlaceOrder(ctx, kite.OrderRequest{
		Exchange:        models.ExchangeNFO,
		TradingSymbol:   option.TradingSymbol,
		TransactionType: models.Sell,
		OrderType:       models.OrderTypeLimit,
		Product:         models.ProductNRML,
		Quantity:        qty,
		Price:           price,
	})
	if err != nil {
		return models.Placement{}, err
	}
	logger.Info("Placed sell order %s for %s: %d @ %.2f", id, option.TradingSymbol, qty, price)

	return models.Placement{
		ID:              id,
		Kind:            models.PlacementEntry,
		TradingSymbol:   option.TradingSymbol,
		TransactionType: models.Sell,
		Quantity:        qty,
		Price:           price,
	}, nil
}
