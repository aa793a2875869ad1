package internal

import (
	"fmt"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"

	"github.com/vadiminshakov/portfel/config"
	"github.com/vadiminshakov/portfel/internal/clients"
	"github.com/vadiminshakov/portfel/internal/exchange"
	"github.com/vadiminshakov/portfel/internal/services/pricer"
)

// NewExchangeClient builds the adapter for one account declaration.
// This is the single point of truth for dispatching to
// exchange-specific implementations.
func NewExchangeClient(acc config.Account, logger *zap.Logger) (exchange.Client, error) {
	switch acc.Exchange {
	case "binance":
		client := clients.NewBinanceClient(acc.APIKey, acc.APISecret)
		var futuresClient *futures.Client
		if acc.Derivatives {
			futuresClient = clients.NewBinanceFuturesClient(acc.APIKey, acc.APISecret)
		}
		return exchange.NewBinance(client, futuresClient, exchange.BinanceOptions{
			Derivatives: acc.Derivatives,
			PushUpdates: acc.PushUpdates,
		}, logger), nil
	case "bybit":
		client := clients.NewBybitClient(acc.APIKey, acc.APISecret)
		return exchange.NewBybit(client, exchange.BybitOptions{
			Derivatives: acc.Derivatives,
		}), nil
	case "hyperliquid":
		info := clients.NewHyperliquidInfo("")
		return exchange.NewHyperliquid(info, acc.AccountAddress), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", acc.Exchange)
	}
}

// PublicPriceSources returns the fixed ordered list of public
// exchanges used when the primary exchange cannot value a currency.
// None of them needs credentials.
func PublicPriceSources(logger *zap.Logger) []pricer.MarketSource {
	return []pricer.MarketSource{
		exchange.NewBinance(clients.NewBinanceClient("", ""), nil, exchange.BinanceOptions{}, logger),
		exchange.NewBybit(clients.NewBybitClient("", ""), exchange.BybitOptions{}),
		exchange.NewHyperliquid(clients.NewHyperliquidInfo(""), ""),
	}
}
