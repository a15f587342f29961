// Package report prints scanned options for the operator and parses the
// operator's selection back into options.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rewired-gh/putscout/internal/models"
)

var columns = []string{
	"instrument", "price", "expiry", "seq", "existing", "%dip", "profit", "%profit",
	"strike", "last_price", "margin", "backup_money",
}

// Render writes options as an aligned table grouped by instrument and expiry.
// The input slice is not reordered.
func Render(w io.Writer, options []models.Option) error {
	rows := append([]models.Option(nil), options...)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Underlying() != b.Underlying() {
			return a.Underlying() < b.Underlying()
		}
		if a.Expiry != b.Expiry {
			return a.Expiry < b.Expiry
		}
		return a.SequenceID < b.SequenceID
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(columns, "\t")+"\t")

	var lastGroup string
	for _, o := range rows {
		instrument, price, expiry := o.Underlying(), formatFloat(underlyingPrice(o)), o.Expiry
		group := instrument + "|" + expiry
		if group == lastGroup {
			instrument, price, expiry = "", "", ""
		}
		lastGroup = group

		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%.2f\t%.2f\t%.2f\t%s\t%.2f\t%.2f\t%.2f\t\n",
			instrument, price, expiry,
			o.SequenceID,
			existing(o),
			o.PercentageDip,
			profitValue(o),
			profitPercentage(o),
			formatFloat(o.Strike),
			o.LastPrice,
			marginTotal(o),
			o.BackupMoney(),
		)
	}
	return tw.Flush()
}

func underlyingPrice(o models.Option) float64 {
	if o.Instrument == nil {
		return 0
	}
	if o.Instrument.ClosePrice > 0 {
		return o.Instrument.ClosePrice
	}
	return o.Instrument.LastPrice
}

func existing(o models.Option) string {
	if o.ExistingLots == 0 {
		return "NA"
	}
	return formatFloat(o.ExistingLots)
}

func profitValue(o models.Option) float64 {
	if o.Profit == nil {
		return 0
	}
	return o.Profit.Value
}

func profitPercentage(o models.Option) float64 {
	if o.Profit == nil {
		return 0
	}
	return o.Profit.Percentage
}

func marginTotal(o models.Option) float64 {
	if o.Margin == nil {
		return 0
	}
	return o.Margin.Total
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseSelection parses a comma separated list of sequence ids. Blank input
// selects nothing.
func ParseSelection(input string) ([]int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	seen := make(map[int]bool)
	var ids []int
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid sequence id %q", part)
		}
		if seen[id] {
			return nil, fmt.Errorf("sequence id %d selected twice", id)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// Totals sums what a selection is expected to earn and block.
type Totals struct {
	Profit float64
	Margin float64
}

// Select picks options by sequence id in selection order.
func Select(options []models.Option, ids []int) ([]models.Option, Totals, error) {
	bySeq := make(map[int]models.Option, len(options))
	for _, o := range options {
		bySeq[o.SequenceID] = o
	}

	var selected []models.Option
	var totals Totals
	for _, id := range ids {
		o, ok := bySeq[id]
		if !ok {
			return nil, Totals{}, fmt.Errorf("no option with sequence id %d", id)
		}
		selected = append(selected, o)
		totals.Profit += profitValue(o)
		totals.Margin += marginTotal(o)
	}
	return selected, totals, nil
}
