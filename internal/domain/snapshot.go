package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RawSnapshot is an exchange balance snapshot before valuation:
// currency to signed total amount.
type RawSnapshot struct {
	Total map[string]decimal.Decimal `json:"total"`
}

// EmptySnapshot is what a failed fetch degrades to; the next cycle retries.
func EmptySnapshot() RawSnapshot {
	return RawSnapshot{Total: map[string]decimal.Decimal{}}
}

// Position is an open futures position as reported by an exchange.
type Position struct {
	Symbol        string          `json:"symbol"`
	Contracts     decimal.Decimal `json:"contracts"`
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl"`
}

// Ticker carries the last traded and close prices for a market pair.
type Ticker struct {
	Last  decimal.Decimal `json:"last"`
	Close decimal.Decimal `json:"close"`
}

// Price returns Last, falling back to Close when Last is absent.
func (t Ticker) Price() decimal.Decimal {
	if t.Last.IsZero() {
		return t.Close
	}
	return t.Last
}

// Pair is a base/quote market pair, formatted "BASE/QUOTE".
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// Symbol returns the concatenated exchange symbol, e.g. "BTCUSDT".
func (p Pair) Symbol() string {
	return p.Base + p.Quote
}

// ParsePair splits "BASE/QUOTE" into a Pair.
func ParsePair(s string) (Pair, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, false
	}
	return Pair{Base: parts[0], Quote: parts[1]}, true
}
