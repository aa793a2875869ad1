package clients

import (
	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
)

func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	return binance.NewClient(apiKey, apiSecret)
}

func NewBinanceFuturesClient(apiKey, apiSecret string) *futures.Client {
	return futures.NewClient(apiKey, apiSecret)
}
