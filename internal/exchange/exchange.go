package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/portfel/internal/domain"
)

// Client is the capability set a balance connection needs from an
// exchange. Adapters wrap exchange-specific quirks (account merging,
// product-type selection) behind this interface.
type Client interface {
	// Name identifies the exchange for logs and price-source ordering.
	Name() string

	// FetchBalanceSnapshot returns the full current balance state.
	FetchBalanceSnapshot(ctx context.Context) (domain.RawSnapshot, error)

	// FetchTicker returns current prices for a market pair.
	FetchTicker(ctx context.Context, pair domain.Pair) (domain.Ticker, error)

	// HasMarket reports whether the pair is tradable on the exchange.
	HasMarket(ctx context.Context, pair domain.Pair) (bool, error)

	// SupportsWatchBalance reports whether the exchange can push
	// balance updates instead of being polled.
	SupportsWatchBalance() bool

	// WatchBalance blocks until the next pushed balance update.
	// Only valid when SupportsWatchBalance returns true.
	WatchBalance(ctx context.Context) (domain.RawSnapshot, error)

	// SupportsPositions reports whether open futures positions can be
	// fetched for the configured product options.
	SupportsPositions() bool

	// FetchPositions returns open futures positions.
	FetchPositions(ctx context.Context) ([]domain.Position, error)
}

// FundBalancer is an optional capability for accounts that hold
// balances outside the primary tradable balance (spot reserve,
// lending/earn products).
type FundBalancer interface {
	// FetchSpotBalance returns the spot-product balance of the given currency.
	FetchSpotBalance(ctx context.Context, currency string) (decimal.Decimal, error)

	// FetchEarnBalance returns the earn/lending balance converted to
	// the given valuation currency.
	FetchEarnBalance(ctx context.Context, valuation string) (decimal.Decimal, error)
}
