// Package models defines the core domain entities: stocks of interest, option chain entries and account state.
package models

import (
	"errors"
	"math"
	"strings"
	"time"
)

// ExpiryLayout is the date layout used by the option chain for expiries.
const ExpiryLayout = "2006-01-02"

// Option type codes as used on NFO.
const (
	TypePut  = "PE"
	TypeCall = "CE"
)

// StockOfInterest is an underlying to scan, with optional per-stock thresholds.
type StockOfInterest struct {
	Ticker        string         `json:"tickersymbol" yaml:"tickersymbol"`
	CustomFilters *CustomFilters `json:"custom_filters,omitempty" yaml:"custom_filters,omitempty"`
}

// CustomFilters overrides scanner thresholds for a single stock.
type CustomFilters struct {
	MinimumDip float64 `json:"minimum_dip" yaml:"minimum_dip"`
}

// HasCustomFilters reports whether the stock carries its own thresholds.
func (s StockOfInterest) HasCustomFilters() bool {
	return s.CustomFilters != nil
}

// Validate checks stock field constraints.
func (s StockOfInterest) Validate() error {
	if strings.TrimSpace(s.Ticker) == "" {
		return errors.New("ticker must not be empty")
	}
	if s.CustomFilters != nil && s.CustomFilters.MinimumDip < 0 {
		return errors.New("minimum dip must not be negative")
	}
	return nil
}

// Instrument is a quote snapshot of an underlying.
type Instrument struct {
	Ticker     string  `json:"ticker"`
	LastPrice  float64 `json:"last_price"`
	ClosePrice float64 `json:"close_price"`
}

// Margin is one row of the broker's bulk order-margin response.
type Margin struct {
	Type          string  `json:"type"`
	TradingSymbol string  `json:"tradingsymbol"`
	Exchange      string  `json:"exchange"`
	Span          float64 `json:"span"`
	Exposure      float64 `json:"exposure"`
	OptionPremium float64 `json:"option_premium"`
	Additional    float64 `json:"additional"`
	Total         float64 `json:"total"`
}

// Profit is the premium collected for one lot and its return on margin.
type Profit struct {
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// Option is an option chain entry. The scanner enriches it in place; the
// enrichment fields are zero until the corresponding stage has run.
type Option struct {
	TradingSymbol        string  `json:"tradingsymbol"`
	UnderlyingInstrument string  `json:"underlying_instrument"`
	InstrumentType       string  `json:"instrument_type"`
	Strike               float64 `json:"strike"`
	Expiry               string  `json:"expiry"`
	LotSize              float64 `json:"lot_size"`
	LastPrice            float64 `json:"last_price"`

	PercentageDip float64     `json:"percentage_dip,omitempty"`
	Margin        *Margin     `json:"margin_data,omitempty"`
	Profit        *Profit     `json:"profit_data,omitempty"`
	Instrument    *Instrument `json:"instrument_data,omitempty"`
	SequenceID    int         `json:"sequence_id,omitempty"`

	// ExistingLots is the size of an already held position in this option, in lots.
	ExistingLots float64 `json:"existing_lots,omitempty"`
}

// Validate checks option field constraints.
func (o *Option) Validate() error {
	if o.TradingSymbol == "" {
		return errors.New("tradingsymbol must not be empty")
	}
	if o.InstrumentType != TypePut && o.InstrumentType != TypeCall {
		return errors.New("instrument type must be CE or PE")
	}
	if o.Strike <= 0 {
		return errors.New("strike must be positive")
	}
	if o.LotSize <= 0 {
		return errors.New("lot size must be positive")
	}
	if o.LastPrice < 0 {
		return errors.New("last price must not be negative")
	}
	if _, err := o.ExpiryTime(); err != nil {
		return errors.New("expiry must be a YYYY-MM-DD date")
	}
	return nil
}

// ExpiryTime parses the expiry date. Full timestamps are accepted as well.
func (o *Option) ExpiryTime() (time.Time, error) {
	if t, err := time.ParseInLocation(ExpiryLayout, o.Expiry, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, o.Expiry)
}

// TimeToExpiryDays returns the whole number of days until expiry, rounded
// down, so an option expiring later today reports -1.
func (o *Option) TimeToExpiryDays(now time.Time) (int, error) {
	expiry, err := o.ExpiryTime()
	if err != nil {
		return 0, err
	}
	return int(math.Floor(expiry.Sub(now).Hours() / 24)), nil
}

// BackupMoney is the cash needed to take delivery of one lot at the strike.
func (o *Option) BackupMoney() float64 {
	return o.LotSize * o.Strike
}

// Underlying returns the underlying ticker, preferring the attached quote.
func (o *Option) Underlying() string {
	if o.Instrument != nil && o.Instrument.Ticker != "" {
		return o.Instrument.Ticker
	}
	return o.UnderlyingInstrument
}
