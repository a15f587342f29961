// Package watchlist resolves the stocks to scan.
package watchlist

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/putscout/internal/models"
)

// DefaultMinimumDip is the dip applied to stocks named on the command line.
const DefaultMinimumDip = 3

type file struct {
	Stocks []models.StockOfInterest `yaml:"stocks"`
}

// Load reads a YAML watchlist of the form
//
//	stocks:
//	  - tickersymbol: INFY
//	    custom_filters:
//	      minimum_dip: 5
//
// Environment variables in the file are expanded.
func Load(path string) ([]models.StockOfInterest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}

	var f file
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("parse watchlist yaml: %w", err)
	}

	for i, s := range f.Stocks {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("watchlist entry %d: %w", i+1, err)
		}
	}
	return f.Stocks, nil
}

// FromTickers builds stocks from a comma separated ticker list. Each gets
// the default minimum dip as a custom filter.
func FromTickers(csv string) []models.StockOfInterest {
	var stocks []models.StockOfInterest
	for _, t := range strings.Split(csv, ",") {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		stocks = append(stocks, models.StockOfInterest{
			Ticker:        t,
			CustomFilters: &models.CustomFilters{MinimumDip: DefaultMinimumDip},
		})
	}
	return stocks
}

// OnlyCustomFiltered keeps the stocks that carry their own filters.
func OnlyCustomFiltered(stocks []models.StockOfInterest) []models.StockOfInterest {
	var kept []models.StockOfInterest
	for _, s := range stocks {
		if s.HasCustomFilters() {
			kept = append(kept, s)
		}
	}
	return kept
}
