package converter

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/patrickmn/go-cache"
	"golang.org/x/exp/slog"

	"go-crashout/internal/config"
	"go-crashout/internal/lib/logger/sl"
)

const ratesCacheKey = "usd_rates"

var geckoIDs = map[config.Asset]string{
	config.Bitcoin:  "bitcoin",
	config.Ethereum: "ethereum",
}

// fallbackRates keep the game playable when the price API is down; the
// exchange rate recorded on the entry still reflects what was applied.
var fallbackRates = map[config.Asset]float64{
	config.Bitcoin:  60000,
	config.Ethereum: 3000,
}

// Service converts USD wagers into settlement assets using CoinGecko
// simple-price quotes, cached for a short TTL.
type Service struct {
	log     *slog.Logger
	baseURL string
	client  *http.Client
	cache   *cache.Cache
}

func NewService(log *slog.Logger, cfg config.Prices) *Service {
	return &Service{
		log:     log,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   cache.New(cfg.TTL, 2*cfg.TTL),
	}
}

// Rate returns the USD price of one unit of the asset.
func (s *Service) Rate(asset config.Asset) (float64, error) {
	if !asset.Valid() {
		return 0, fmt.Errorf("converter: unknown asset %q", asset)
	}

	rates := s.rates()

	return rates[asset], nil
}

func (s *Service) UsdToAsset(usd float64, asset config.Asset) (float64, float64, error) {
	rate, err := s.Rate(asset)
	if err != nil {
		return 0, 0, err
	}

	return FormatAmount(usd/rate, asset), rate, nil
}

func (s *Service) AssetToUsd(amount float64, asset config.Asset) (float64, float64, error) {
	rate, err := s.Rate(asset)
	if err != nil {
		return 0, 0, err
	}

	return amount * rate, rate, nil
}

func (s *Service) rates() map[config.Asset]float64 {
	if cached, found := s.cache.Get(ratesCacheKey); found {
		return cached.(map[config.Asset]float64)
	}

	rates, err := s.fetchRates()
	if err != nil {
		s.log.Warn("price fetch failed, using fallback rates", sl.Err(err))

		return fallbackRates
	}

	s.cache.Set(ratesCacheKey, rates, cache.DefaultExpiration)

	return rates
}

func (s *Service) fetchRates() (map[config.Asset]float64, error) {
	const op = "converter.fetchRates"

	endpoint := s.baseURL + "/simple/price?" + url.Values{
		"ids":           {"bitcoin,ethereum"},
		"vs_currencies": {"usd"},
	}.Encode()

	resp, err := s.client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var body map[string]struct {
		USD float64 `json:"usd"`
	}

	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rates := make(map[config.Asset]float64, len(geckoIDs))

	for asset, id := range geckoIDs {
		quote, ok := body[id]
		if !ok || quote.USD <= 0 {
			return nil, fmt.Errorf("%s: missing quote for %s", op, id)
		}

		rates[asset] = quote.USD
	}

	return rates, nil
}

// FormatAmount rounds to the asset's native decimal precision.
func FormatAmount(amount float64, asset config.Asset) float64 {
	scale := math.Pow10(asset.Decimals())

	return math.Round(amount*scale) / scale
}
