package normalizer

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/portfel/internal/domain"
	"github.com/vadiminshakov/portfel/internal/exchange"
)

// priceResolver values one currency in another. Failures mean the
// currency is skipped for the pass, not that the pass failed.
type priceResolver interface {
	Resolve(ctx context.Context, currency, valuation string) (decimal.Decimal, error)
}

// Normalizer turns raw balance snapshots from one exchange connection
// into valued assets and publishes them into the connection's group.
type Normalizer struct {
	client      exchange.Client
	resolver    priceResolver
	cache       *Cache
	store       recordStore
	group       string
	connection  string
	valuation   string
	fundAccount bool
	logger      *zap.Logger
}

// recordStore is the aggregator surface the normalizer writes to.
type recordStore interface {
	Replace(group, valuation, connection string, assets domain.AssetMap)
	SetFundBalances(group, valuation string, spot, earn *decimal.Decimal)
}

type Config struct {
	Client      exchange.Client
	Resolver    priceResolver
	Cache       *Cache
	Store       recordStore
	Group       string
	Connection  string
	Valuation   string
	FundAccount bool
	Logger      *zap.Logger
}

func New(cfg Config) *Normalizer {
	return &Normalizer{
		client:      cfg.Client,
		resolver:    cfg.Resolver,
		cache:       cfg.Cache,
		store:       cfg.Store,
		group:       cfg.Group,
		connection:  cfg.Connection,
		valuation:   cfg.Valuation,
		fundAccount: cfg.FundAccount,
		logger:      cfg.Logger,
	}
}

// Normalize merges the raw snapshot into the balance cache, values
// every cached currency in the group's valuation currency, appends
// open futures positions valued by unrealized PnL, filters dust, and
// replaces this connection's contribution in the group record.
// full marks snapshots that list the entire account (REST polls);
// push updates are partial and must not evict unmentioned currencies.
func (n *Normalizer) Normalize(ctx context.Context, raw domain.RawSnapshot, full bool) {
	if full {
		n.cache.MergeFull(raw)
	} else {
		n.cache.Merge(raw)
	}

	assets := make(domain.AssetMap)
	for currency, amount := range n.cache.Snapshot() {
		asset, ok := n.valueCurrency(ctx, currency, amount)
		if !ok {
			continue
		}
		assets[asset.Symbol] = asset
	}

	for _, position := range n.fetchPositions(ctx) {
		if position.UnrealizedPnl.Abs().LessThan(domain.DustThreshold) {
			continue
		}
		assets[position.Symbol] = domain.Asset{
			Symbol:    position.Symbol,
			Amount:    position.Contracts,
			BaseValue: position.UnrealizedPnl,
			Type:      domain.AssetTypeFutures,
		}
	}

	n.store.Replace(n.group, n.valuation, n.connection, assets)

	if n.fundAccount {
		n.attachFundBalances(ctx)
	}
}

// valueCurrency resolves one cached holding into an asset. The
// valuation currency itself needs no price lookup and bypasses the
// dust filter: its base value is the amount, unconditionally.
func (n *Normalizer) valueCurrency(ctx context.Context, currency string, amount decimal.Decimal) (domain.Asset, bool) {
	if currency == n.valuation {
		return domain.Asset{
			Symbol:    currency,
			Amount:    amount,
			BaseValue: amount,
			Type:      domain.AssetTypeSpot,
		}, true
	}

	price, err := n.resolver.Resolve(ctx, currency, n.valuation)
	if err != nil {
		// stays cached, retried next pass
		n.logger.Debug("price unresolved, skipping currency",
			zap.String("currency", currency), zap.Error(err))
		return domain.Asset{}, false
	}
	if price.IsZero() {
		return domain.Asset{}, false
	}

	asset := domain.Asset{
		Symbol:    currency,
		Amount:    amount,
		BaseValue: amount.Mul(price),
		Type:      domain.AssetTypeSpot,
	}
	if asset.IsDust() {
		return domain.Asset{}, false
	}
	return asset, true
}

func (n *Normalizer) fetchPositions(ctx context.Context) []domain.Position {
	if !n.client.SupportsPositions() {
		return nil
	}
	positions, err := n.client.FetchPositions(ctx)
	if err != nil {
		n.logger.Warn("position fetch failed, skipping positions this pass", zap.Error(err))
		return nil
	}
	valid := positions[:0]
	for _, p := range positions {
		if p.Contracts.IsZero() {
			continue
		}
		valid = append(valid, p)
	}
	return valid
}

// attachFundBalances fetches the supplementary spot/earn balances for
// fund-flagged accounts. Any failure here is isolated from the primary
// normalization.
func (n *Normalizer) attachFundBalances(ctx context.Context) {
	fund, ok := n.client.(exchange.FundBalancer)
	if !ok {
		return
	}

	var spot, earn *decimal.Decimal
	if v, err := fund.FetchSpotBalance(ctx, n.valuation); err != nil {
		n.logger.Warn("spot balance fetch failed", zap.Error(err))
	} else {
		spot = &v
	}
	if v, err := fund.FetchEarnBalance(ctx, n.valuation); err != nil {
		n.logger.Warn("earn balance fetch failed", zap.Error(err))
	} else {
		earn = &v
	}

	n.store.SetFundBalances(n.group, n.valuation, spot, earn)
}
