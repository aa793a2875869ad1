package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/portfel/internal/domain"
)

// ErrPriceNotFound means no market on the primary exchange or any
// alternate could value the currency. Callers drop the asset from the
// current pass; it is not a fatal condition.
var ErrPriceNotFound = errors.New("price not found")

// MarketSource is the slice of the exchange capability the resolver
// needs: market existence checks and ticker reads.
type MarketSource interface {
	Name() string
	HasMarket(ctx context.Context, pair domain.Pair) (bool, error)
	FetchTicker(ctx context.Context, pair domain.Pair) (domain.Ticker, error)
}

// Resolver values a currency in a target valuation currency using the
// primary exchange first, then a fixed ordered list of public
// alternates. Alternates need no credentials.
type Resolver struct {
	primary    MarketSource
	alternates []MarketSource
	logger     *zap.Logger
}

func NewResolver(primary MarketSource, alternates []MarketSource, logger *zap.Logger) *Resolver {
	return &Resolver{primary: primary, alternates: alternates, logger: logger}
}

// Resolve returns the price of one unit of currency expressed in
// valuation. Identity resolves to 1 without any lookup. A zero or
// unparseable price is treated as not found, never returned as 0.
func (r *Resolver) Resolve(ctx context.Context, currency, valuation string) (decimal.Decimal, error) {
	if currency == valuation {
		return decimal.NewFromInt(1), nil
	}

	if price, err := r.resolveOn(ctx, r.primary, currency, valuation); err == nil {
		return price, nil
	}

	for _, alt := range r.alternates {
		price, err := r.resolveOn(ctx, alt, currency, valuation)
		if err != nil {
			r.logger.Debug("alternate price source failed",
				zap.String("exchange", alt.Name()),
				zap.String("currency", currency),
				zap.Error(err))
			continue
		}
		return price, nil
	}

	return decimal.Zero, errors.Wrapf(ErrPriceNotFound, "%s in %s", currency, valuation)
}

// resolveOn scans the candidate pairs in order and takes the first one
// the source lists. A ticker failure on the matched pair does not try
// further candidates on the same source; the next source is consulted
// instead.
func (r *Resolver) resolveOn(ctx context.Context, src MarketSource, currency, valuation string) (decimal.Decimal, error) {
	for _, cand := range Candidates(currency, valuation) {
		ok, err := src.HasMarket(ctx, cand.Pair)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "check market %s on %s", cand.Pair, src.Name())
		}
		if !ok {
			continue
		}

		ticker, err := src.FetchTicker(ctx, cand.Pair)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "fetch ticker %s on %s", cand.Pair, src.Name())
		}

		price := ticker.Price()
		if price.IsZero() {
			return decimal.Zero, errors.Wrapf(ErrPriceNotFound, "zero price for %s on %s", cand.Pair, src.Name())
		}
		if cand.Invert {
			price = decimal.NewFromInt(1).Div(price)
		}
		return price, nil
	}
	return decimal.Zero, errors.Wrapf(ErrPriceNotFound, "no market for %s in %s on %s", currency, valuation, src.Name())
}
