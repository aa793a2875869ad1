package pricer

import "github.com/vadiminshakov/portfel/internal/domain"

// Candidate is one market pair to probe when resolving a price.
// Invert is set when the valuation side is the base of the pair, so a
// fetched price must be flipped (1/price) to value the currency.
type Candidate struct {
	Pair   domain.Pair
	Invert bool
}

// Candidates returns the ordered market pairs to probe when valuing
// currency in valuation. Direct pairs come before USD-bridged ones;
// duplicates (when the valuation currency is USD or USDT itself) are
// collapsed keeping the first occurrence.
func Candidates(currency, valuation string) []Candidate {
	raw := []Candidate{
		{Pair: domain.Pair{Base: currency, Quote: valuation}},
		{Pair: domain.Pair{Base: valuation, Quote: currency}, Invert: true},
		{Pair: domain.Pair{Base: currency, Quote: "USD"}},
		{Pair: domain.Pair{Base: "USD", Quote: currency}, Invert: true},
		{Pair: domain.Pair{Base: currency, Quote: "USDT"}},
		{Pair: domain.Pair{Base: "USDT", Quote: currency}, Invert: true},
	}

	seen := make(map[string]struct{}, len(raw))
	candidates := make([]Candidate, 0, len(raw))
	for _, c := range raw {
		key := c.Pair.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, c)
	}
	return candidates
}
