package kite

import (
	"context"
	"math"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/rewired-gh/putscout/internal/models"
)

// Profile returns the authenticated user. It doubles as a token check.
func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.get(ctx, "/oms/user/profile/full", nil, &user); err != nil {
		return nil, errors.Wrap(err, "get profile")
	}
	return &user, nil
}

type quote struct {
	LastPrice float64 `json:"last_price"`
	OHLC      struct {
		Close float64 `json:"close"`
	} `json:"ohlc"`
}

// Quote returns the NSE quote of an underlying.
func (c *Client) Quote(ctx context.Context, ticker string) (*models.Instrument, error) {
	key := "NSE:" + ticker
	var data map[string]quote
	if err := c.get(ctx, "/oms/quote", url.Values{"i": {key}}, &data); err != nil {
		return nil, errors.Wrapf(err, "get quote %s", ticker)
	}
	q, ok := data[key]
	if !ok {
		return nil, errors.Errorf("no quote returned for %s", key)
	}
	return &models.Instrument{
		Ticker:     ticker,
		LastPrice:  q.LastPrice,
		ClosePrice: q.OHLC.Close,
	}, nil
}

type marginRequest struct {
	Exchange        string  `json:"exchange"`
	TradingSymbol   string  `json:"tradingsymbol"`
	TransactionType string  `json:"transaction_type"`
	Product         string  `json:"product"`
	Variety         string  `json:"variety"`
	OrderType       string  `json:"order_type"`
	Quantity        any     `json:"quantity"`
	Price           float64 `json:"price"`
}

// OrderMargins computes, in one call, the margin needed to sell one lot of
// each option at its last price. Rows come back in request order.
func (c *Client) OrderMargins(ctx context.Context, options []models.Option) ([]models.Margin, error) {
	if len(options) == 0 {
		return []models.Margin{}, nil
	}

	payload := make([]marginRequest, 0, len(options))
	for _, o := range options {
		var qty any = o.LotSize
		if o.LotSize == math.Trunc(o.LotSize) {
			qty = int64(o.LotSize)
		}
		payload = append(payload, marginRequest{
			Exchange:        models.ExchangeNFO,
			TradingSymbol:   o.TradingSymbol,
			TransactionType: models.Sell,
			Product:         models.ProductNRML,
			Variety:         models.VarietyRegular,
			OrderType:       "limit",
			Quantity:        qty,
			Price:           o.LastPrice,
		})
	}

	var margins []models.Margin
	if err := c.postJSON(ctx, "/oms/margins/orders", payload, true, &margins); err != nil {
		return nil, errors.Wrap(err, "get order margins")
	}
	if len(margins) != len(options) {
		return nil, errors.Errorf("margin rows mismatch: got %d, want %d", len(margins), len(options))
	}
	return margins, nil
}

// EquityNet returns the net equity margin available.
func (c *Client) EquityNet(ctx context.Context) (float64, error) {
	var data struct {
		Equity struct {
			Net float64 `json:"net"`
		} `json:"equity"`
	}
	if err := c.get(ctx, "/oms/user/margins", nil, &data); err != nil {
		return 0, errors.Wrap(err, "get user margins")
	}
	return data.Equity.Net, nil
}

// Positions returns the net positions of the account.
func (c *Client) Positions(ctx context.Context) ([]models.Position, error) {
	var data struct {
		Net []models.Position `json:"net"`
	}
	if err := c.get(ctx, "/oms/portfolio/positions", nil, &data, http.StatusNotModified); err != nil {
		return nil, errors.Wrap(err, "get positions")
	}
	return data.Net, nil
}

// Orders returns the orders of the current trading day.
func (c *Client) Orders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := c.get(ctx, "/oms/orders", nil, &orders); err != nil {
		return nil, errors.Wrap(err, "get orders")
	}
	return orders, nil
}

// GTTs returns the account's GTT triggers.
func (c *Client) GTTs(ctx context.Context) ([]models.GTT, error) {
	var gtts []models.GTT
	if err := c.get(ctx, "/oms/gtt/triggers", nil, &gtts); err != nil {
		return nil, errors.Wrap(err, "get gtt triggers")
	}
	return gtts, nil
}
