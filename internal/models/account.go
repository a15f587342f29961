package models

import "strings"

// Transaction types, products and order types used against the broker.
const (
	Buy  = "BUY"
	Sell = "SELL"

	ExchangeNFO = "NFO"
	ProductNRML = "NRML"

	OrderTypeLimit = "LIMIT"
	VarietyRegular = "regular"
)

// Position is a net position from the broker's portfolio endpoint.
type Position struct {
	TradingSymbol string  `json:"tradingsymbol"`
	Exchange      string  `json:"exchange"`
	Product       string  `json:"product"`
	Quantity      int     `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
	PnL           float64 `json:"pnl"`
	BuyPrice      float64 `json:"buy_price"`
	SellPrice     float64 `json:"sell_price"`
	BuyQuantity   int     `json:"buy_quantity"`
	SellQuantity  int     `json:"sell_quantity"`
}

// IsOption reports whether the position is in an option contract.
func (p Position) IsOption() bool {
	return strings.HasSuffix(p.TradingSymbol, TypePut) || strings.HasSuffix(p.TradingSymbol, TypeCall)
}

// IsFuture reports whether the position is in a futures contract.
func (p Position) IsFuture() bool {
	return strings.HasSuffix(p.TradingSymbol, "FUT")
}

// IsShort reports a net sold position.
func (p Position) IsShort() bool {
	return p.Quantity < 0
}

// PnLPercentage is the captured share of the entry premium for a short
// position, or the gain over the entry price for a long one.
func (p Position) PnLPercentage() float64 {
	if p.IsShort() {
		if p.SellPrice == 0 {
			return 0
		}
		return (p.SellPrice - p.LastPrice) / p.SellPrice * 100
	}
	if p.BuyPrice == 0 {
		return 0
	}
	return (p.LastPrice - p.BuyPrice) / p.BuyPrice * 100
}

// Order is an order of the current trading day.
type Order struct {
	OrderID         string  `json:"order_id"`
	TradingSymbol   string  `json:"tradingsymbol"`
	Exchange        string  `json:"exchange"`
	Status          string  `json:"status"`
	TransactionType string  `json:"transaction_type"`
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
	Tag             string  `json:"tag"`
}

// IsOpen reports whether the order may still execute.
func (o Order) IsOpen() bool {
	switch o.Status {
	case "OPEN", "TRIGGER PENDING", "OPEN PENDING", "VALIDATION PENDING", "PUT ORDER REQ RECEIVED", "MODIFY PENDING", "AMO REQ RECEIVED":
		return true
	}
	return false
}

// GTTCondition is the trigger side of a GTT.
type GTTCondition struct {
	Exchange      string    `json:"exchange"`
	TradingSymbol string    `json:"tradingsymbol"`
	TriggerValues []float64 `json:"trigger_values"`
	LastPrice     float64   `json:"last_price"`
}

// GTTOrder is an order leg placed when a GTT triggers.
type GTTOrder struct {
	Exchange        string  `json:"exchange"`
	TradingSymbol   string  `json:"tradingsymbol"`
	TransactionType string  `json:"transaction_type"`
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
	OrderType       string  `json:"order_type"`
	Product         string  `json:"product"`
}

// GTT is a good-till-triggered trigger and its order legs.
type GTT struct {
	ID        int          `json:"id"`
	Type      string       `json:"type"`
	Status    string       `json:"status"`
	Condition GTTCondition `json:"condition"`
	Orders    []GTTOrder   `json:"orders"`
	ExpiresAt string       `json:"expires_at"`
}

// User is the broker profile of the authenticated account.
type User struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
}

// Kinds of placement made by a run.
const (
	PlacementEntry = "entry"
	PlacementExit  = "exit"
	PlacementGTT   = "gtt"
)

// Placement records an order or GTT trigger placed during a run.
type Placement struct {
	ID              string  `json:"id"`
	Kind            string  `json:"kind"`
	TradingSymbol   string  `json:"tradingsymbol"`
	TransactionType string  `json:"transaction_type"`
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
}
