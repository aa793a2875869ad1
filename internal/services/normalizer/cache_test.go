package normalizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vadiminshakov/portfel/internal/domain"
)

func snap(amounts map[string]float64) domain.RawSnapshot {
	total := make(map[string]decimal.Decimal, len(amounts))
	for cur, amt := range amounts {
		total[cur] = decimal.NewFromFloat(amt)
	}
	return domain.RawSnapshot{Total: total}
}

func TestCacheMergeOverwritesAboveEpsilon(t *testing.T) {
	c := NewCache(PushEpsilon)

	c.Merge(snap(map[string]float64{"BTC": 0.5, "ETH": 2}))
	amounts := c.Snapshot()
	assert.Len(t, amounts, 2)
	assert.True(t, amounts["BTC"].Equal(decimal.NewFromFloat(0.5)))

	c.Merge(snap(map[string]float64{"BTC": 0.7}))
	amounts = c.Snapshot()
	assert.True(t, amounts["BTC"].Equal(decimal.NewFromFloat(0.7)))
	assert.True(t, amounts["ETH"].Equal(decimal.NewFromInt(2)), "unmentioned currency must survive a partial merge")
}

func TestCacheMergeDeletesReportedZero(t *testing.T) {
	c := NewCache(PushEpsilon)

	c.Merge(snap(map[string]float64{"BTC": 0.5}))
	c.Merge(snap(map[string]float64{"BTC": 0}))

	assert.Equal(t, 0, c.Len())
}

func TestCacheMergeDeletesBelowEpsilon(t *testing.T) {
	c := NewCache(PushEpsilon)

	c.Merge(snap(map[string]float64{"BTC": 0.5}))
	c.Merge(snap(map[string]float64{"BTC": 0.0000001}))

	assert.Equal(t, 0, c.Len())
}

func TestCacheMergeFullEvictsAbsentCurrencies(t *testing.T) {
	c := NewCache(RestEpsilon)

	c.MergeFull(snap(map[string]float64{"BTC": 0.5, "ETH": 2}))
	c.MergeFull(snap(map[string]float64{"ETH": 2}))

	amounts := c.Snapshot()
	assert.Len(t, amounts, 1)
	_, ok := amounts["BTC"]
	assert.False(t, ok, "currency absent from a full snapshot must be dropped")
}

func TestCacheNegativeAmountsAreKept(t *testing.T) {
	c := NewCache(PushEpsilon)

	c.Merge(snap(map[string]float64{"USDT": -150}))
	amounts := c.Snapshot()
	assert.True(t, amounts["USDT"].Equal(decimal.NewFromInt(-150)))
}

func TestCacheSnapshotIsACopy(t *testing.T) {
	c := NewCache(PushEpsilon)
	c.Merge(snap(map[string]float64{"BTC": 0.5}))

	amounts := c.Snapshot()
	amounts["ETH"] = decimal.NewFromInt(1)

	assert.Equal(t, 1, c.Len())
}
