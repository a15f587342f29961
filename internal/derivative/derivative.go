// Package derivative parses NFO tradingsymbols and computes monthly expiry dates.
package derivative

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Kinds of derivative contract.
const (
	KindPut    = "PE"
	KindCall   = "CE"
	KindFuture = "FUT"
)

// TickSize is the NFO price tick.
const TickSize = 0.05

// IST is the exchange timezone.
var IST = time.FixedZone("IST", 5*3600+1800)

var monthlySymbol = regexp.MustCompile(`^([A-Z0-9&-]+?)(\d{2}(?:JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC))(?:(FUT)|(\d+(?:\.\d+)?)(CE|PE))$`)

// Meta describes a monthly derivative contract.
type Meta struct {
	Instrument string
	Series     string // e.g. "20OCT"
	Strike     float64
	Kind       string
}

// Parse splits a monthly tradingsymbol such as RELIANCE20OCT1900PE or
// RELIANCE20OCTFUT into its parts.
func Parse(symbol string) (Meta, error) {
	m := monthlySymbol.FindStringSubmatch(symbol)
	if m == nil {
		return Meta{}, fmt.Errorf("unrecognised tradingsymbol: %s", symbol)
	}
	meta := Meta{Instrument: m[1], Series: m[2]}
	if m[3] == KindFuture {
		meta.Kind = KindFuture
		return meta, nil
	}
	strike, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Meta{}, fmt.Errorf("invalid strike in %s: %w", symbol, err)
	}
	meta.Strike = strike
	meta.Kind = m[5]
	return meta, nil
}

// FutureSymbol is the monthly future of the same instrument and series.
func (m Meta) FutureSymbol() string {
	return m.Instrument + m.Series + KindFuture
}

// LastThursday returns the last Thursday of the series month, which is the
// monthly expiry day.
func LastThursday(series string) (time.Time, error) {
	if len(series) != 5 {
		return time.Time{}, fmt.Errorf("invalid series: %s", series)
	}
	month, err := time.ParseInLocation("06Jan", series[:2]+titleMonth(series[2:]), IST)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid series %s: %w", series, err)
	}
	day := month.AddDate(0, 1, -1)
	for day.Weekday() != time.Thursday {
		day = day.AddDate(0, 0, -1)
	}
	return day, nil
}

func titleMonth(s string) string {
	if len(s) != 3 {
		return s
	}
	b := []byte(s)
	for i := 1; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// RoundToTick rounds a price to the nearest multiple of tick.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	t := decimal.NewFromFloat(tick)
	rounded := decimal.NewFromFloat(price).Div(t).Round(0).Mul(t)
	f, _ := rounded.Float64()
	return f
}
