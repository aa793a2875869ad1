package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/portfel/internal/domain"
)

const (
	binanceMarketsTTL       = 10 * time.Minute
	binanceStreamKeepalive  = 30 * time.Minute
	binanceSymbolStatusLive = "TRADING"
)

// BinanceOptions selects the product types a connection works with.
type BinanceOptions struct {
	// Derivatives enables USD-M futures position fetching.
	Derivatives bool
	// PushUpdates enables the user-data stream balance subscription.
	PushUpdates bool
}

// Binance adapts the Binance spot (and optionally USD-M futures) API
// to the exchange client capability set. Pushed account updates are
// partial, so the adapter merges them over the last known REST snapshot
// before handing them out.
type Binance struct {
	client  *binance.Client
	futures *futures.Client
	opts    BinanceOptions
	logger  *zap.Logger

	marketsMu sync.Mutex
	markets   map[string]struct{}
	marketsAt time.Time

	pushMu      sync.Mutex
	pushStarted bool
	pushCh      chan domain.RawSnapshot
	pushErr     chan error

	lastMu sync.Mutex
	last   map[string]decimal.Decimal
}

// NewBinance creates the adapter. futuresClient may be nil when
// derivatives are disabled.
func NewBinance(client *binance.Client, futuresClient *futures.Client, opts BinanceOptions, logger *zap.Logger) *Binance {
	return &Binance{
		client:  client,
		futures: futuresClient,
		opts:    opts,
		logger:  logger,
		pushCh:  make(chan domain.RawSnapshot, 16),
		pushErr: make(chan error, 1),
		last:    make(map[string]decimal.Decimal),
	}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) FetchBalanceSnapshot(ctx context.Context) (domain.RawSnapshot, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return domain.EmptySnapshot(), errors.Wrap(err, "fetch binance account")
	}

	total := make(map[string]decimal.Decimal, len(account.Balances))
	for _, bal := range account.Balances {
		free, err := decimal.NewFromString(bal.Free)
		if err != nil {
			continue
		}
		locked, err := decimal.NewFromString(bal.Locked)
		if err != nil {
			continue
		}
		amount := free.Add(locked)
		if amount.IsZero() {
			continue
		}
		total[bal.Asset] = amount
	}

	b.lastMu.Lock()
	b.last = make(map[string]decimal.Decimal, len(total))
	for cur, amt := range total {
		b.last[cur] = amt
	}
	b.lastMu.Unlock()

	return domain.RawSnapshot{Total: total}, nil
}

func (b *Binance) FetchTicker(ctx context.Context, pair domain.Pair) (domain.Ticker, error) {
	prices, err := b.client.NewListPricesService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return domain.Ticker{}, errors.Wrapf(err, "fetch binance price for %s", pair)
	}
	if len(prices) == 0 {
		return domain.Ticker{}, errors.Errorf("binance returned no price for %s", pair)
	}
	last, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return domain.Ticker{}, errors.Wrapf(err, "parse binance price for %s", pair)
	}
	return domain.Ticker{Last: last}, nil
}

func (b *Binance) HasMarket(ctx context.Context, pair domain.Pair) (bool, error) {
	if err := b.ensureMarkets(ctx); err != nil {
		return false, err
	}
	b.marketsMu.Lock()
	defer b.marketsMu.Unlock()
	_, ok := b.markets[pair.String()]
	return ok, nil
}

func (b *Binance) ensureMarkets(ctx context.Context) error {
	b.marketsMu.Lock()
	fresh := b.markets != nil && time.Since(b.marketsAt) < binanceMarketsTTL
	b.marketsMu.Unlock()
	if fresh {
		return nil
	}

	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch binance exchange info")
	}

	markets := make(map[string]struct{}, len(info.Symbols))
	for _, sym := range info.Symbols {
		if sym.Status != binanceSymbolStatusLive {
			continue
		}
		markets[sym.BaseAsset+"/"+sym.QuoteAsset] = struct{}{}
	}

	b.marketsMu.Lock()
	b.markets = markets
	b.marketsAt = time.Now()
	b.marketsMu.Unlock()
	return nil
}

func (b *Binance) SupportsWatchBalance() bool { return b.opts.PushUpdates }

// WatchBalance blocks until the next pushed account update arrives on
// the user-data stream. The stream is started lazily on first call.
func (b *Binance) WatchBalance(ctx context.Context) (domain.RawSnapshot, error) {
	if err := b.ensurePushStream(ctx); err != nil {
		return domain.EmptySnapshot(), err
	}

	select {
	case <-ctx.Done():
		return domain.EmptySnapshot(), ctx.Err()
	case err := <-b.pushErr:
		return domain.EmptySnapshot(), err
	case snap := <-b.pushCh:
		return snap, nil
	}
}

func (b *Binance) ensurePushStream(ctx context.Context) error {
	b.pushMu.Lock()
	defer b.pushMu.Unlock()
	if b.pushStarted {
		return nil
	}

	listenKey, err := b.client.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return errors.Wrap(err, "start binance user stream")
	}

	wsHandler := func(event *binance.WsUserDataEvent) {
		if event.Event != binance.UserDataEventTypeOutboundAccountPosition {
			return
		}
		snap := b.mergePushUpdate(event.AccountUpdate.WsAccountUpdates)
		select {
		case b.pushCh <- snap:
		default:
			// reader is behind; the next event carries the merged state anyway
		}
	}
	errHandler := func(err error) {
		select {
		case b.pushErr <- errors.Wrap(err, "binance user stream"):
		default:
		}
	}

	doneC, stopC, err := binance.WsUserDataServe(listenKey, wsHandler, errHandler)
	if err != nil {
		return errors.Wrap(err, "serve binance user stream")
	}
	b.pushStarted = true

	go b.keepAlive(listenKey, doneC, stopC)
	return nil
}

// mergePushUpdate applies a partial account update over the last known
// state and returns a full snapshot. Zeroed assets stay in the snapshot
// as explicit zeros so downstream caches drop them.
func (b *Binance) mergePushUpdate(updates []binance.WsAccountUpdate) domain.RawSnapshot {
	b.lastMu.Lock()
	defer b.lastMu.Unlock()

	zeroed := make([]string, 0)
	for _, upd := range updates {
		free, err := decimal.NewFromString(upd.Free)
		if err != nil {
			continue
		}
		locked, err := decimal.NewFromString(upd.Locked)
		if err != nil {
			continue
		}
		amount := free.Add(locked)
		if amount.IsZero() {
			delete(b.last, upd.Asset)
			zeroed = append(zeroed, upd.Asset)
			continue
		}
		b.last[upd.Asset] = amount
	}

	total := make(map[string]decimal.Decimal, len(b.last)+len(zeroed))
	for cur, amt := range b.last {
		total[cur] = amt
	}
	for _, cur := range zeroed {
		total[cur] = decimal.Zero
	}
	return domain.RawSnapshot{Total: total}
}

func (b *Binance) keepAlive(listenKey string, doneC, stopC chan struct{}) {
	ticker := time.NewTicker(binanceStreamKeepalive)
	defer ticker.Stop()
	for {
		select {
		case <-doneC:
			select {
			case b.pushErr <- errors.New("binance user stream closed"):
			default:
			}
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := b.client.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx)
			cancel()
			if err != nil {
				b.logger.Warn("binance user stream keepalive failed", zap.Error(err))
				close(stopC)
				return
			}
		}
	}
}

func (b *Binance) SupportsPositions() bool { return b.opts.Derivatives && b.futures != nil }

func (b *Binance) FetchPositions(ctx context.Context) ([]domain.Position, error) {
	if !b.SupportsPositions() {
		return nil, nil
	}
	risks, err := b.futures.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch binance futures positions")
	}

	positions := make([]domain.Position, 0, len(risks))
	for _, risk := range risks {
		contracts, err := decimal.NewFromString(risk.PositionAmt)
		if err != nil || contracts.IsZero() {
			continue
		}
		pnl, err := decimal.NewFromString(risk.UnRealizedProfit)
		if err != nil {
			continue
		}
		positions = append(positions, domain.Position{
			Symbol:        risk.Symbol,
			Contracts:     contracts,
			UnrealizedPnl: pnl,
		})
	}
	return positions, nil
}

// FetchSpotBalance returns the spot account balance of one currency
// (free plus locked).
func (b *Binance) FetchSpotBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "fetch binance spot account")
	}
	for _, bal := range account.Balances {
		if bal.Asset != currency {
			continue
		}
		free, err := decimal.NewFromString(bal.Free)
		if err != nil {
			return decimal.Zero, errors.Wrap(err, "parse spot balance")
		}
		locked, err := decimal.NewFromString(bal.Locked)
		if err != nil {
			return decimal.Zero, errors.Wrap(err, "parse spot balance")
		}
		return free.Add(locked), nil
	}
	return decimal.Zero, nil
}

// FetchEarnBalance sums flexible savings positions converted into the
// valuation currency. Assets without a direct market are skipped.
func (b *Binance) FetchEarnBalance(ctx context.Context, valuation string) (decimal.Decimal, error) {
	positions, err := b.client.NewSavingFlexibleProductPositionsService().Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "fetch binance savings positions")
	}

	total := decimal.Zero
	for _, pos := range positions {
		amount, err := decimal.NewFromString(pos.TotalAmount)
		if err != nil || amount.IsZero() {
			continue
		}
		if pos.Asset == valuation {
			total = total.Add(amount)
			continue
		}
		ticker, err := b.FetchTicker(ctx, domain.Pair{Base: pos.Asset, Quote: valuation})
		if err != nil {
			b.logger.Debug("skip earn asset without market",
				zap.String("asset", pos.Asset), zap.Error(err))
			continue
		}
		total = total.Add(amount.Mul(ticker.Price()))
	}
	return total, nil
}
