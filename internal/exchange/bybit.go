package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/portfel/internal/domain"
)

const bybitMarketsTTL = 10 * time.Minute

// BybitOptions selects the product types a connection works with.
type BybitOptions struct {
	// Derivatives enables linear position fetching.
	Derivatives bool
	// SettleCoin filters linear positions; defaults to USDT.
	SettleCoin string
}

// Bybit adapts the Bybit V5 unified account API to the exchange client
// capability set. Bybit has no push balance subscription here; the
// connection polls. The market set covers spot and linear instruments;
// spot wins when a pair is listed in both categories.
type Bybit struct {
	client *bybit.Client
	opts   BybitOptions

	marketsMu sync.Mutex
	markets   map[string]bybit.CategoryV5
	marketsAt time.Time
}

func NewBybit(client *bybit.Client, opts BybitOptions) *Bybit {
	if opts.SettleCoin == "" {
		opts.SettleCoin = "USDT"
	}
	return &Bybit{client: client, opts: opts}
}

func (b *Bybit) Name() string { return "bybit" }

// FetchBalanceSnapshot reads the unified wallet, which already merges
// spot and derivatives coin balances into one view.
func (b *Bybit) FetchBalanceSnapshot(ctx context.Context) (domain.RawSnapshot, error) {
	res, err := b.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5UNIFIED, nil)
	if err != nil {
		return domain.EmptySnapshot(), errors.Wrap(err, "fetch bybit wallet balance")
	}

	total := make(map[string]decimal.Decimal)
	for _, account := range res.Result.List {
		for _, coin := range account.Coin {
			amount, err := decimal.NewFromString(coin.WalletBalance)
			if err != nil || amount.IsZero() {
				continue
			}
			// sub-accounts of the unified wallet can report the same
			// coin more than once
			total[string(coin.Coin)] = total[string(coin.Coin)].Add(amount)
		}
	}
	return domain.RawSnapshot{Total: total}, nil
}

func (b *Bybit) FetchTicker(ctx context.Context, pair domain.Pair) (domain.Ticker, error) {
	if err := b.ensureMarkets(ctx); err != nil {
		return domain.Ticker{}, err
	}

	symbol := bybit.SymbolV5(pair.Symbol())
	category := b.categoryFor(pair)
	res, err := b.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: category,
		Symbol:   &symbol,
	})
	if err != nil {
		return domain.Ticker{}, errors.Wrapf(err, "fetch bybit ticker for %s", pair)
	}

	var price string
	switch {
	case category == bybit.CategoryV5Spot && res.Result.Spot != nil && len(res.Result.Spot.List) > 0:
		price = res.Result.Spot.List[0].LastPrice
	case category == bybit.CategoryV5Linear && res.Result.LinearInverse != nil && len(res.Result.LinearInverse.List) > 0:
		price = res.Result.LinearInverse.List[0].LastPrice
	default:
		return domain.Ticker{}, errors.Errorf("bybit returned no ticker for %s", pair)
	}

	last, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Ticker{}, errors.Wrapf(err, "parse bybit price for %s", pair)
	}
	return domain.Ticker{Last: last}, nil
}

// categoryFor picks the instrument category a pair is listed under.
// Unknown pairs default to spot so the ticker error stays descriptive.
func (b *Bybit) categoryFor(pair domain.Pair) bybit.CategoryV5 {
	b.marketsMu.Lock()
	defer b.marketsMu.Unlock()
	if category, ok := b.markets[pair.String()]; ok {
		return category
	}
	return bybit.CategoryV5Spot
}

func (b *Bybit) HasMarket(ctx context.Context, pair domain.Pair) (bool, error) {
	if err := b.ensureMarkets(ctx); err != nil {
		return false, err
	}
	b.marketsMu.Lock()
	defer b.marketsMu.Unlock()
	_, ok := b.markets[pair.String()]
	return ok, nil
}

func (b *Bybit) ensureMarkets(ctx context.Context) error {
	b.marketsMu.Lock()
	fresh := b.markets != nil && time.Since(b.marketsAt) < bybitMarketsTTL
	b.marketsMu.Unlock()
	if fresh {
		return nil
	}

	markets := make(map[string]bybit.CategoryV5)

	linear, err := b.client.V5().Market().GetInstrumentsInfo(bybit.V5GetInstrumentsInfoParam{
		Category: bybit.CategoryV5Linear,
	})
	if err != nil {
		return errors.Wrap(err, "fetch bybit linear instruments")
	}
	if linear.Result.LinearInverse != nil {
		for _, inst := range linear.Result.LinearInverse.List {
			markets[string(inst.BaseCoin)+"/"+string(inst.QuoteCoin)] = bybit.CategoryV5Linear
		}
	}

	spot, err := b.client.V5().Market().GetInstrumentsInfo(bybit.V5GetInstrumentsInfoParam{
		Category: bybit.CategoryV5Spot,
	})
	if err != nil {
		return errors.Wrap(err, "fetch bybit spot instruments")
	}
	if spot.Result.Spot != nil {
		for _, inst := range spot.Result.Spot.List {
			markets[string(inst.BaseCoin)+"/"+string(inst.QuoteCoin)] = bybit.CategoryV5Spot
		}
	}

	b.marketsMu.Lock()
	b.markets = markets
	b.marketsAt = time.Now()
	b.marketsMu.Unlock()
	return nil
}

func (b *Bybit) SupportsWatchBalance() bool { return false }

func (b *Bybit) WatchBalance(ctx context.Context) (domain.RawSnapshot, error) {
	return domain.EmptySnapshot(), errors.New("bybit adapter does not push balance updates")
}

func (b *Bybit) SupportsPositions() bool { return b.opts.Derivatives }

func (b *Bybit) FetchPositions(ctx context.Context) ([]domain.Position, error) {
	if !b.opts.Derivatives {
		return nil, nil
	}
	settle := bybit.Coin(b.opts.SettleCoin)
	res, err := b.client.V5().Position().GetPositionInfo(bybit.V5GetPositionInfoParam{
		Category:   bybit.CategoryV5Linear,
		SettleCoin: &settle,
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch bybit positions")
	}

	positions := make([]domain.Position, 0, len(res.Result.List))
	for _, item := range res.Result.List {
		size, err := decimal.NewFromString(item.Size)
		if err != nil || size.IsZero() {
			continue
		}
		pnl, err := decimal.NewFromString(item.UnrealisedPnl)
		if err != nil {
			continue
		}
		positions = append(positions, domain.Position{
			Symbol:        string(item.Symbol),
			Contracts:     size,
			UnrealizedPnl: pnl,
		})
	}
	return positions, nil
}
