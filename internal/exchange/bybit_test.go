package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/portfel/internal/domain"
)

func seededBybit(markets map[string]bybit.CategoryV5) *Bybit {
	b := NewBybit(bybit.NewClient(), BybitOptions{})
	b.markets = markets
	b.marketsAt = time.Now()
	return b
}

func TestBybitMarketSetCoversLinear(t *testing.T) {
	b := seededBybit(map[string]bybit.CategoryV5{
		"BTC/USDT": bybit.CategoryV5Spot,
		"TIA/USDT": bybit.CategoryV5Linear,
	})

	ctx := context.Background()

	// coins listed only as linear perpetuals are still valuable markets
	ok, err := b.HasMarket(ctx, domain.Pair{Base: "TIA", Quote: "USDT"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.HasMarket(ctx, domain.Pair{Base: "DOGE", Quote: "USDT"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBybitCategorySelection(t *testing.T) {
	b := seededBybit(map[string]bybit.CategoryV5{
		"BTC/USDT": bybit.CategoryV5Spot,
		"TIA/USDT": bybit.CategoryV5Linear,
	})

	assert.Equal(t, bybit.CategoryV5Spot, b.categoryFor(domain.Pair{Base: "BTC", Quote: "USDT"}))
	assert.Equal(t, bybit.CategoryV5Linear, b.categoryFor(domain.Pair{Base: "TIA", Quote: "USDT"}))
	// unknown pairs fall back to spot
	assert.Equal(t, bybit.CategoryV5Spot, b.categoryFor(domain.Pair{Base: "XRP", Quote: "EUR"}))
}
