// Package scanner selects put options worth selling: it filters option chains
// by strike and expiry, prices margin and premium, and ranks the survivors.
package scanner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rewired-gh/putscout/internal/logger"
	"github.com/rewired-gh/putscout/internal/models"
	"github.com/rewired-gh/putscout/internal/sensibull"
)

type Config struct {
	MaxTimeToExpiryDays     int
	MinDip                  float64
	MaxDip                  float64
	MinimumProfitPercentage float64
}

func DefaultConfig() Config {
	return Config{
		MaxTimeToExpiryDays:     45,
		MinDip:                  3,
		MaxDip:                  15,
		MinimumProfitPercentage: 2,
	}
}

// ChainSource provides option chains.
type ChainSource interface {
	FetchChain(ctx context.Context, ticker string) (*sensibull.Chain, error)
}

// Broker provides quotes and margin requirements.
type Broker interface {
	Quote(ctx context.Context, ticker string) (*models.Instrument, error)
	OrderMargins(ctx context.Context, options []models.Option) ([]models.Margin, error)
}

// Observer is told how many options each stock contributed.
type Observer interface {
	ObserveStock(ticker string, chainSize, candidates int)
}

type Scanner struct {
	chains   ChainSource
	broker   Broker
	config   Config
	observer Observer
	now      func() time.Time
}

func New(chains ChainSource, broker Broker, config Config) *Scanner {
	return &Scanner{
		chains: chains,
		broker: broker,
		config: config,
		now:    time.Now,
	}
}

// SetObserver registers an observer for per-stock counts.
func (s *Scanner) SetObserver(o Observer) {
	s.observer = o
}

// GetOptionsOfInterest runs the whole pipeline over the stocks and returns
// the ranked candidates numbered from 1. Any failing stock aborts the scan.
func (s *Scanner) GetOptionsOfInterest(ctx context.Context, stocks []models.StockOfInterest) ([]models.Option, error) {
	var all []models.Option

	for _, stock := range stocks {
		if err := stock.Validate(); err != nil {
			return nil, fmt.Errorf("invalid stock %q: %w", stock.Ticker, err)
		}

		instrument, err := s.broker.Quote(ctx, stock.Ticker)
		if err != nil {
			return nil, fmt.Errorf("failed to get instrument %s: %w", stock.Ticker, err)
		}
		chain, err := s.chains.FetchChain(ctx, stock.Ticker)
		if err != nil {
			return nil, err
		}

		candidates := s.SelectCandidates(chain.Options, instrument, stock)
		logger.Debug("%s: %d of %d options inside strike/expiry window", stock.Ticker, len(candidates), len(chain.Options))

		candidates, err = s.AddMargins(ctx, candidates)
		if err != nil {
			return nil, fmt.Errorf("failed to add margins for %s: %w", stock.Ticker, err)
		}
		candidates = AddProfits(candidates)
		candidates = AddInstrument(instrument, candidates)

		if s.observer != nil {
			s.observer.ObserveStock(stock.Ticker, len(chain.Options), len(candidates))
		}
		all = append(all, candidates...)
	}

	options := Rank(all)
	options = s.Filter(options)
	for i := range options {
		options[i].SequenceID = i + 1
	}

	logger.Info("Found %d options of interest across %d stocks", len(options), len(stocks))
	return options, nil
}

// SelectCandidates keeps puts struck at or below the underlying price that
// expire within the configured window and whose dip lies strictly inside the
// band. A stock's own minimum dip replaces the configured minimum.
func (s *Scanner) SelectCandidates(options []models.Option, instrument *models.Instrument, stock models.StockOfInterest) []models.Option {
	price := instrument.LastPrice
	minDip := s.config.MinDip
	if stock.HasCustomFilters() {
		minDip = stock.CustomFilters.MinimumDip
	}
	now := s.now()

	var selected []models.Option
	if price <= 0 {
		logger.Warn("%s: no usable price (%.2f), skipping", stock.Ticker, price)
		return selected
	}

	for _, option := range options {
		if option.InstrumentType != models.TypePut {
			continue
		}
		if option.Strike > price {
			continue
		}
		days, err := option.TimeToExpiryDays(now)
		if err != nil {
			logger.Debug("Skipping %s: %v", option.TradingSymbol, err)
			continue
		}
		if days > s.config.MaxTimeToExpiryDays {
			continue
		}

		dip := (price - option.Strike) / price * 100
		if minDip < dip && dip < s.config.MaxDip {
			option.PercentageDip = dip
			selected = append(selected, option)
		}
	}
	return selected
}

// AddMargins prices the margin of every option in one broker call.
func (s *Scanner) AddMargins(ctx context.Context, options []models.Option) ([]models.Option, error) {
	if len(options) == 0 {
		return options, nil
	}
	margins, err := s.broker.OrderMargins(ctx, options)
	if err != nil {
		return nil, err
	}
	if len(margins) != len(options) {
		return nil, fmt.Errorf("got %d margins for %d options", len(margins), len(options))
	}
	for i := range options {
		m := margins[i]
		options[i].Margin = &m
	}
	return options, nil
}

// AddProfits sets the premium of one lot and its return on margin. Options
// without a positive margin are dropped.
func AddProfits(options []models.Option) []models.Option {
	kept := options[:0]
	for _, option := range options {
		if option.Margin == nil || option.Margin.Total <= 0 {
			logger.Warn("Dropping %s: no usable margin", option.TradingSymbol)
			continue
		}
		value := option.LastPrice * option.LotSize
		option.Profit = &models.Profit{
			Value:      value,
			Percentage: value / option.Margin.Total * 100,
		}
		kept = append(kept, option)
	}
	return kept
}

// AddInstrument attaches the underlying quote to every option.
func AddInstrument(instrument *models.Instrument, options []models.Option) []models.Option {
	for i := range options {
		inst := *instrument
		options[i].Instrument = &inst
	}
	return options
}

// Rank orders options by return on margin plus dip, best first. Ties keep
// their input order.
func Rank(options []models.Option) []models.Option {
	sort.SliceStable(options, func(i, j int) bool {
		return score(options[i]) > score(options[j])
	})
	return options
}

func score(o models.Option) float64 {
	if o.Profit == nil {
		return o.PercentageDip
	}
	return o.Profit.Percentage + o.PercentageDip
}

// Filter keeps options whose return on margin beats the minimum.
func (s *Scanner) Filter(options []models.Option) []models.Option {
	var kept []models.Option
	for _, option := range options {
		if option.Profit == nil || option.Profit.Percentage <= s.config.MinimumProfitPercentage {
			continue
		}
		kept = append(kept, option)
	}
	return kept
}

// Annotate marks options already held in the account with the held size in lots.
func Annotate(options []models.Option, positions []models.Position) {
	held := make(map[string]int, len(positions))
	for _, p := range positions {
		if p.Quantity != 0 {
			held[p.TradingSymbol] = p.Quantity
		}
	}
	for i := range options {
		qty, ok := held[options[i].TradingSymbol]
		if !ok || options[i].LotSize <= 0 {
			continue
		}
		options[i].ExistingLots = math.Abs(float64(qty)) / options[i].LotSize
	}
}
