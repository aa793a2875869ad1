package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AssetType distinguishes spot holdings from futures positions.
type AssetType string

const (
	AssetTypeSpot    AssetType = "spot"
	AssetTypeFutures AssetType = "futures"
)

// DustThreshold is the minimum absolute base value an asset must have
// to appear in a published group record.
var DustThreshold = decimal.NewFromFloat(0.01)

// Asset is one valued holding inside a group. BaseValue is always
// expressed in the group's valuation currency.
type Asset struct {
	Symbol    string          `json:"symbol"`
	Amount    decimal.Decimal `json:"amount"`
	BaseValue decimal.Decimal `json:"base_value"`
	Type      AssetType       `json:"type"`
}

// IsDust reports whether the asset falls below the display threshold.
func (a Asset) IsDust() bool {
	return a.BaseValue.Abs().LessThan(DustThreshold)
}

// AssetMap keys assets by symbol.
type AssetMap map[string]Asset

// Sum returns the total base value of all assets in the map.
func (m AssetMap) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, a := range m {
		total = total.Add(a.BaseValue)
	}
	return total
}

// Sorted returns assets ordered by absolute base value, largest first.
// Symbols break ties so output is deterministic.
func (m AssetMap) Sorted() []Asset {
	assets := make([]Asset, 0, len(m))
	for _, a := range m {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool {
		vi, vj := assets[i].BaseValue.Abs(), assets[j].BaseValue.Abs()
		if vi.Equal(vj) {
			return assets[i].Symbol < assets[j].Symbol
		}
		return vi.GreaterThan(vj)
	})
	return assets
}

// Copy returns a shallow copy of the map (Asset values are immutable).
func (m AssetMap) Copy() AssetMap {
	cp := make(AssetMap, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
