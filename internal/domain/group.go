package domain

import "github.com/shopspring/decimal"

// GroupRecord is the aggregated view of one logical account group:
// one or more exchange connections sharing a valuation currency.
// SpotBalance and EarnBalance are set only for fund-flagged accounts
// that hold balances outside the primary tradable balance.
type GroupRecord struct {
	Name              string           `json:"name"`
	ValuationCurrency string           `json:"valuation_currency"`
	Balances          AssetMap         `json:"balances"`
	Total             decimal.Decimal  `json:"total"`
	SpotBalance       *decimal.Decimal `json:"spot_balance,omitempty"`
	EarnBalance       *decimal.Decimal `json:"earn_balance,omitempty"`
}

// NewGroupRecord creates an empty record for a group.
func NewGroupRecord(name, valuationCurrency string) *GroupRecord {
	return &GroupRecord{
		Name:              name,
		ValuationCurrency: valuationCurrency,
		Balances:          make(AssetMap),
		Total:             decimal.Zero,
	}
}

// RecomputeTotal recalculates Total from the current balances.
// The total is never adjusted incrementally.
func (r *GroupRecord) RecomputeTotal() {
	r.Total = r.Balances.Sum()
}

// Copy returns a deep copy safe to hand to readers.
func (r *GroupRecord) Copy() GroupRecord {
	cp := *r
	cp.Balances = r.Balances.Copy()
	if r.SpotBalance != nil {
		v := *r.SpotBalance
		cp.SpotBalance = &v
	}
	if r.EarnBalance != nil {
		v := *r.EarnBalance
		cp.EarnBalance = &v
	}
	return cp
}
