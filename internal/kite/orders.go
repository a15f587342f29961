package kite

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/rewired-gh/putscout/internal/derivative"
	"github.com/rewired-gh/putscout/internal/models"
)

// OrderRequest is a regular order placement.
type OrderRequest struct {
	Exchange        string
	TradingSymbol   string
	TransactionType string
	OrderType       string
	Product         string
	Quantity        int
	Price           float64
}

// GTTRequest is a GTT placement.
type GTTRequest struct {
	Type      string
	Condition models.GTTCondition
	Orders    []models.GTTOrder
	ExpiresAt string
}

// PlaceOrder places a regular DAY order and returns its id. The price is
// rounded to the exchange tick. Placement is never retried.
func (c *Client) PlaceOrder(ctx context.Context, o OrderRequest) (string, error) {
	if o.Quantity <= 0 {
		return "", errors.Errorf("invalid quantity %d for %s", o.Quantity, o.TradingSymbol)
	}

	form := url.Values{}
	form.Set("variety", models.VarietyRegular)
	form.Set("exchange", o.Exchange)
	form.Set("tradingsymbol", o.TradingSymbol)
	form.Set("transaction_type", o.TransactionType)
	form.Set("order_type", o.OrderType)
	form.Set("product", o.Product)
	form.Set("quantity", strconv.Itoa(o.Quantity))
	form.Set("price", strconv.FormatFloat(derivative.RoundToTick(o.Price, derivative.TickSize), 'f', 2, 64))
	form.Set("validity", "DAY")
	form.Set("tag", c.orderTag)

	var data struct {
		OrderID string `json:"order_id"`
	}
	if err := c.postForm(ctx, "/oms/orders/regular", form, &data); err != nil {
		return "", errors.Wrapf(err, "place %s order for %s", o.TransactionType, o.TradingSymbol)
	}
	return data.OrderID, nil
}

// PlaceGTT places a GTT trigger and returns the trigger id.
func (c *Client) PlaceGTT(ctx context.Context, g GTTRequest) (int, error) {
	condition, err := json.Marshal(g.Condition)
	if err != nil {
		return 0, errors.Wrap(err, "marshal gtt condition")
	}
	orders, err := json.Marshal(g.Orders)
	if err != nil {
		return 0, errors.Wrap(err, "marshal gtt orders")
	}

	form := url.Values{}
	form.Set("type", g.Type)
	form.Set("condition", string(condition))
	form.Set("orders", string(orders))
	if g.ExpiresAt != "" {
		form.Set("expires_at", g.ExpiresAt)
	}

	var data struct {
		TriggerID int `json:"trigger_id"`
	}
	if err := c.postForm(ctx, "/oms/gtt/triggers", form, &data); err != nil {
		return 0, errors.Wrapf(err, "place gtt on %s", g.Condition.TradingSymbol)
	}
	return data.TriggerID, nil
}
