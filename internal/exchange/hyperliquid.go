package exchange

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/portfel/internal/domain"
)

const hyperliquidMidsTTL = 5 * time.Second

// Hyperliquid adapts the Hyperliquid Info API. With an account address
// it serves as a full balance connection; with an empty address it is a
// public price source only (markets and mids need no credentials).
type Hyperliquid struct {
	info        *hyperliquid.Info
	accountAddr string

	midsMu sync.Mutex
	mids   map[string]string
	midsAt time.Time
}

func NewHyperliquid(info *hyperliquid.Info, accountAddr string) *Hyperliquid {
	return &Hyperliquid{info: info, accountAddr: accountAddr}
}

func (h *Hyperliquid) Name() string { return "hyperliquid" }

// FetchBalanceSnapshot combines spot balances with the withdrawable
// perp margin (USDC). Position value is reported separately through
// FetchPositions, so only free margin is counted here.
func (h *Hyperliquid) FetchBalanceSnapshot(ctx context.Context) (domain.RawSnapshot, error) {
	if h.accountAddr == "" {
		return domain.EmptySnapshot(), errors.New("hyperliquid account address is not set")
	}

	spot, err := h.info.SpotUserState(ctx, h.accountAddr)
	if err != nil {
		return domain.EmptySnapshot(), errors.Wrap(err, "fetch hyperliquid spot state")
	}

	total := make(map[string]decimal.Decimal)
	for _, bal := range spot.Balances {
		amount, err := decimal.NewFromString(bal.Total)
		if err != nil || amount.IsZero() {
			continue
		}
		total[bal.Coin] = total[bal.Coin].Add(amount)
	}

	perp, err := h.info.UserState(ctx, h.accountAddr)
	if err != nil {
		return domain.EmptySnapshot(), errors.Wrap(err, "fetch hyperliquid user state")
	}
	if perp.Withdrawable != "" {
		if margin, err := decimal.NewFromString(perp.Withdrawable); err == nil && !margin.IsZero() {
			total["USDC"] = total["USDC"].Add(margin)
		}
	}

	return domain.RawSnapshot{Total: total}, nil
}

func (h *Hyperliquid) FetchTicker(ctx context.Context, pair domain.Pair) (domain.Ticker, error) {
	mids, err := h.allMids(ctx)
	if err != nil {
		return domain.Ticker{}, err
	}
	mid, ok := mids[pair.Base]
	if !ok || mid == "" {
		return domain.Ticker{}, errors.Errorf("hyperliquid has no mid price for %s", pair.Base)
	}
	last, err := decimal.NewFromString(mid)
	if err != nil {
		return domain.Ticker{}, errors.Wrapf(err, "parse hyperliquid mid for %s", pair.Base)
	}
	return domain.Ticker{Last: last}, nil
}

// HasMarket treats every listed coin as quoted in USD stable units;
// only USD-family quotes can match.
func (h *Hyperliquid) HasMarket(ctx context.Context, pair domain.Pair) (bool, error) {
	if !isUSDFamily(pair.Quote) {
		return false, nil
	}
	mids, err := h.allMids(ctx)
	if err != nil {
		return false, err
	}
	mid, ok := mids[pair.Base]
	return ok && mid != "", nil
}

func isUSDFamily(currency string) bool {
	switch strings.ToUpper(currency) {
	case "USD", "USDT", "USDC":
		return true
	}
	return false
}

func (h *Hyperliquid) allMids(ctx context.Context) (map[string]string, error) {
	h.midsMu.Lock()
	if h.mids != nil && time.Since(h.midsAt) < hyperliquidMidsTTL {
		mids := h.mids
		h.midsMu.Unlock()
		return mids, nil
	}
	h.midsMu.Unlock()

	mids, err := h.info.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch hyperliquid mids")
	}

	h.midsMu.Lock()
	h.mids = mids
	h.midsAt = time.Now()
	h.midsMu.Unlock()
	return mids, nil
}

func (h *Hyperliquid) SupportsWatchBalance() bool { return false }

func (h *Hyperliquid) WatchBalance(ctx context.Context) (domain.RawSnapshot, error) {
	return domain.EmptySnapshot(), errors.New("hyperliquid adapter does not push balance updates")
}

func (h *Hyperliquid) SupportsPositions() bool { return h.accountAddr != "" }

func (h *Hyperliquid) FetchPositions(ctx context.Context) ([]domain.Position, error) {
	if h.accountAddr == "" {
		return nil, nil
	}
	state, err := h.info.UserState(ctx, h.accountAddr)
	if err != nil {
		return nil, errors.Wrap(err, "fetch hyperliquid user state")
	}

	positions := make([]domain.Position, 0, len(state.AssetPositions))
	for _, ap := range state.AssetPositions {
		szi := strings.TrimSpace(ap.Position.Szi)
		if szi == "" {
			continue
		}
		size, err := decimal.NewFromString(szi)
		if err != nil || size.IsZero() {
			continue
		}
		pnl, err := decimal.NewFromString(ap.Position.UnrealizedPnl)
		if err != nil {
			continue
		}
		positions = append(positions, domain.Position{
			Symbol:        ap.Position.Coin,
			Contracts:     size,
			UnrealizedPnl: pnl,
		})
	}
	return positions, nil
}
