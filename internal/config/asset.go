package config

import "fmt"

// Asset is the closed set of balance units the ledger settles in. Wagers
// arriving in USD are converted before they reach the engine.
type Asset string

const (
	Bitcoin  Asset = "BTC"
	Ethereum Asset = "ETH"
)

var assetDecimals = map[Asset]int{
	Bitcoin:  8,
	Ethereum: 18,
}

// Assets lists every settleable asset in a stable order.
func Assets() []Asset {
	return []Asset{Bitcoin, Ethereum}
}

func ParseAsset(s string) (Asset, error) {
	switch Asset(s) {
	case Bitcoin, Ethereum:
		return Asset(s), nil
	}

	return "", fmt.Errorf("unknown asset: %q", s)
}

func (a Asset) Valid() bool {
	_, ok := assetDecimals[a]

	return ok
}

func (a Asset) Decimals() int {
	return assetDecimals[a]
}
