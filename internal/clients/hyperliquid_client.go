package clients

import (
	"context"

	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// NewHyperliquidInfo builds the public Info client. Balance reads and
// pricing need no signing key, only an account address for the
// credentialed endpoints.
func NewHyperliquidInfo(baseURL string) *hyperliquid.Info {
	if baseURL == "" {
		baseURL = hyperliquid.MainnetAPIURL
	}
	// meta and spot meta are fetched lazily by the SDK
	return hyperliquid.NewInfo(context.Background(), baseURL, true, nil, nil)
}
