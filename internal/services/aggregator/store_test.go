package aggregator

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/portfel/internal/domain"
)

func asset(symbol string, value int64) domain.Asset {
	return domain.Asset{
		Symbol:    symbol,
		Amount:    decimal.NewFromInt(1),
		BaseValue: decimal.NewFromInt(value),
		Type:      domain.AssetTypeSpot,
	}
}

func TestStoreLazyCreate(t *testing.T) {
	s := NewStore()

	_, ok := s.Get("main")
	assert.False(t, ok)

	s.Replace("main", "USDT", "conn1", domain.AssetMap{"BTC": asset("BTC", 100)})

	rec, ok := s.Get("main")
	require.True(t, ok)
	assert.Equal(t, "main", rec.Name)
	assert.Equal(t, "USDT", rec.ValuationCurrency)
	assert.True(t, rec.Total.Equal(decimal.NewFromInt(100)))
}

func TestStoreMergesDisjointConnections(t *testing.T) {
	s := NewStore()

	s.Replace("main", "USDT", "conn1", domain.AssetMap{"BTC": asset("BTC", 100)})
	s.Replace("main", "USDT", "conn2", domain.AssetMap{"ETH": asset("ETH", 50)})

	rec, _ := s.Get("main")
	assert.Len(t, rec.Balances, 2)
	assert.True(t, rec.Total.Equal(decimal.NewFromInt(150)))

	// conn1 rewrites its slice; conn2's contribution survives
	s.Replace("main", "USDT", "conn1", domain.AssetMap{"BTC": asset("BTC", 80)})
	rec, _ = s.Get("main")
	assert.True(t, rec.Total.Equal(decimal.NewFromInt(130)))

	// conn1 zeroes out entirely
	s.Replace("main", "USDT", "conn1", domain.AssetMap{})
	rec, _ = s.Get("main")
	assert.Len(t, rec.Balances, 1)
	assert.True(t, rec.Total.Equal(decimal.NewFromInt(50)))
}

func TestStoreSameExchangeSubAccounts(t *testing.T) {
	s := NewStore()

	// two sub-accounts of one exchange feeding one group: their ids
	// differ by declaration index, so neither pass wipes the other
	s.Replace("main", "USDT", "binance/main/0", domain.AssetMap{"BTC": asset("BTC", 100)})
	s.Replace("main", "USDT", "binance/main/1", domain.AssetMap{"SOL": asset("SOL", 40)})

	rec, _ := s.Get("main")
	assert.Len(t, rec.Balances, 2)
	assert.True(t, rec.Total.Equal(decimal.NewFromInt(140)))

	s.Replace("main", "USDT", "binance/main/0", domain.AssetMap{"BTC": asset("BTC", 90)})
	rec, _ = s.Get("main")
	assert.Contains(t, rec.Balances, "SOL")
	assert.True(t, rec.Total.Equal(decimal.NewFromInt(130)))
}

func TestStoreGroupsAreIndependent(t *testing.T) {
	s := NewStore()

	s.Replace("main", "USDT", "conn1", domain.AssetMap{"BTC": asset("BTC", 100)})
	s.Replace("fund", "USD", "conn2", domain.AssetMap{"ETH": asset("ETH", 50)})

	assert.Equal(t, []string{"fund", "main"}, s.Groups())

	main, _ := s.Get("main")
	fund, _ := s.Get("fund")
	assert.True(t, main.Total.Equal(decimal.NewFromInt(100)))
	assert.True(t, fund.Total.Equal(decimal.NewFromInt(50)))
}

func TestStoreSnapshotIsolation(t *testing.T) {
	s := NewStore()
	s.Replace("main", "USDT", "conn1", domain.AssetMap{"BTC": asset("BTC", 100)})

	snapshot := s.Snapshot()
	snapshot["main"].Balances["HACK"] = asset("HACK", 1)

	rec, _ := s.Get("main")
	assert.Len(t, rec.Balances, 1)
}

func TestStoreFundBalances(t *testing.T) {
	s := NewStore()
	spot := decimal.NewFromInt(10)

	s.SetFundBalances("main", "USDT", &spot, nil)
	rec, ok := s.Get("main")
	require.True(t, ok)
	require.NotNil(t, rec.SpotBalance)
	assert.True(t, rec.SpotBalance.Equal(decimal.NewFromInt(10)))
	assert.Nil(t, rec.EarnBalance)

	// nil keeps the previous reading
	earn := decimal.NewFromInt(99)
	s.SetFundBalances("main", "USDT", nil, &earn)
	rec, _ = s.Get("main")
	require.NotNil(t, rec.SpotBalance)
	assert.True(t, rec.SpotBalance.Equal(decimal.NewFromInt(10)))
	assert.True(t, rec.EarnBalance.Equal(decimal.NewFromInt(99)))
}

func TestStoreNotifiesSubscribers(t *testing.T) {
	s := NewStore()
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	s.Replace("main", "USDT", "conn1", domain.AssetMap{"BTC": asset("BTC", 100)})

	select {
	case change := <-ch:
		assert.Equal(t, "main", change.Group)
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}
}

func TestStoreConcurrentReplaces(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		conn := string(rune('a' + i))
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Replace("main", "USDT", conn, domain.AssetMap{
					conn: asset(conn, 10),
				})
				s.Snapshot()
			}
		}()
	}
	wg.Wait()

	rec, _ := s.Get("main")
	assert.Len(t, rec.Balances, 8)
	assert.True(t, rec.Total.Equal(decimal.NewFromInt(80)))
	assert.True(t, rec.Total.Equal(rec.Balances.Sum()))
}
