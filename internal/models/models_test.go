package models

import (
	"testing"
	"time"
)

func TestOptionValidate(t *testing.T) {
	valid := Option{
		TradingSymbol:  "RELIANCE20OCT1900PE",
		InstrumentType: TypePut,
		Strike:         1900,
		Expiry:         "2020-10-29",
		LotSize:        505,
		LastPrice:      12.5,
	}

	tests := []struct {
		name    string
		mutate  func(o *Option)
		wantErr bool
	}{
		{name: "valid option", mutate: func(o *Option) {}, wantErr: false},
		{name: "empty tradingsymbol", mutate: func(o *Option) { o.TradingSymbol = "" }, wantErr: true},
		{name: "future type", mutate: func(o *Option) { o.InstrumentType = "FUT" }, wantErr: true},
		{name: "zero strike", mutate: func(o *Option) { o.Strike = 0 }, wantErr: true},
		{name: "zero lot size", mutate: func(o *Option) { o.LotSize = 0 }, wantErr: true},
		{name: "negative price", mutate: func(o *Option) { o.LastPrice = -1 }, wantErr: true},
		{name: "bad expiry", mutate: func(o *Option) { o.Expiry = "29/10/2020" }, wantErr: true},
		{name: "rfc3339 expiry", mutate: func(o *Option) { o.Expiry = "2020-10-29T15:30:00+05:30" }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid
			tt.mutate(&o)
			err := o.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Option.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeToExpiryDays(t *testing.T) {
	o := Option{Expiry: "2020-10-29"}
	tests := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2020, 10, 1, 0, 0, 0, 0, time.Local), 28},
		{time.Date(2020, 10, 1, 10, 0, 0, 0, time.Local), 27},
		{time.Date(2020, 10, 29, 0, 0, 0, 0, time.Local), 0},
		{time.Date(2020, 10, 29, 9, 15, 0, 0, time.Local), -1},
	}
	for _, tt := range tests {
		got, err := o.TimeToExpiryDays(tt.now)
		if err != nil {
			t.Fatalf("TimeToExpiryDays: %v", err)
		}
		if got != tt.want {
			t.Errorf("TimeToExpiryDays(%v) = %d, want %d", tt.now, got, tt.want)
		}
	}
}

func TestBackupMoney(t *testing.T) {
	o := Option{Strike: 1900, LotSize: 505}
	if got := o.BackupMoney(); got != 959500 {
		t.Errorf("BackupMoney() = %f, want 959500", got)
	}
}

func TestStockOfInterestValidate(t *testing.T) {
	if err := (StockOfInterest{Ticker: "INFY"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (StockOfInterest{Ticker: " "}).Validate(); err == nil {
		t.Error("expected error for blank ticker")
	}
	neg := StockOfInterest{Ticker: "INFY", CustomFilters: &CustomFilters{MinimumDip: -1}}
	if err := neg.Validate(); err == nil {
		t.Error("expected error for negative minimum dip")
	}
}

func TestPositionPnLPercentage(t *testing.T) {
	tests := []struct {
		name string
		pos  Position
		want float64
	}{
		{"short decayed", Position{Quantity: -505, SellPrice: 20, LastPrice: 2}, 90},
		{"short no sell price", Position{Quantity: -505, LastPrice: 2}, 0},
		{"long gained", Position{Quantity: 50, BuyPrice: 100, LastPrice: 150}, 50},
		{"flat", Position{Quantity: 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pos.PnLPercentage(); got != tt.want {
				t.Errorf("PnLPercentage() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestPositionKinds(t *testing.T) {
	if !(Position{TradingSymbol: "INFY20OCT900PE"}).IsOption() {
		t.Error("PE should be an option")
	}
	if !(Position{TradingSymbol: "INFY20OCT1100CE"}).IsOption() {
		t.Error("CE should be an option")
	}
	if (Position{TradingSymbol: "INFY20OCTFUT"}).IsOption() {
		t.Error("FUT should not be an option")
	}
	if !(Position{TradingSymbol: "INFY20OCTFUT"}).IsFuture() {
		t.Error("FUT should be a future")
	}
}

func TestOrderIsOpen(t *testing.T) {
	if !(Order{Status: "OPEN"}).IsOpen() {
		t.Error("OPEN should be open")
	}
	if (Order{Status: "COMPLETE"}).IsOpen() {
		t.Error("COMPLETE should not be open")
	}
	if (Order{Status: "REJECTED"}).IsOpen() {
		t.Error("REJECTED should not be open")
	}
}
