package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/portfoliotracker/src/logger"
)

// coinIDBySymbol maps the ticker symbols stored in transactions to CoinGecko
// coin ids. Symbols outside this map are reported UNAVAILABLE.
var coinIDBySymbol = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"ADA":  "cardano",
	"DOT":  "polkadot",
	"AVAX": "avalanche-2",
	"LINK": "chainlink",
	"XRP":  "ripple",
	"LTC":  "litecoin",
	"DOGE": "dogecoin",
	"USDT": "tether",
	"USDC": "usd-coin",
}

// priceServiceImpl fetches spot prices from the CoinGecko simple price API
// and caches them so holdings refreshes do not hammer the free tier.
type priceServiceImpl struct {
	httpClient http.Client
	baseURL    string
	priceCache *cache.Cache
}

// NewPriceService creates a price service backed by CoinGecko.
func NewPriceService(baseURL string, cacheExpiry time.Duration) PriceService {
	return &priceServiceImpl{
		httpClient: http.Client{Timeout: 20 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		priceCache: cache.New(cacheExpiry, 2*cacheExpiry),
	}
}

// GetCurrentPrices returns USD spot prices for the given symbols. Unknown or
// failed symbols come back with Status UNAVAILABLE rather than an error so
// one delisted asset does not break the holdings view.
func (s *priceServiceImpl) GetCurrentPrices(symbols []string) (map[string]PriceInfo, error) {
	result := make(map[string]PriceInfo)
	var fetchIDs []string
	idToSymbol := make(map[string]string)

	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		result[sym] = PriceInfo{Status: "UNAVAILABLE"}

		if cached, found := s.priceCache.Get(sym); found {
			result[sym] = cached.(PriceInfo)
			continue
		}
		id, ok := coinIDBySymbol[sym]
		if !ok {
			logger.L.Debug("No CoinGecko id for symbol", "symbol", sym)
			continue
		}
		fetchIDs = append(fetchIDs, id)
		idToSymbol[id] = sym
	}
	if len(fetchIDs) == 0 {
		return result, nil
	}

	prices, err := s.fetchSimplePrices(fetchIDs)
	if err != nil {
		logger.L.Error("CoinGecko price fetch failed", "error", err)
		return result, err
	}

	for id, usd := range prices {
		sym := idToSymbol[id]
		info := PriceInfo{Status: "OK", Price: usd, Currency: "USD"}
		result[sym] = info
		s.priceCache.Set(sym, info, cache.DefaultExpiration)
	}
	return result, nil
}

type simplePriceResponse map[string]struct {
	Usd float64 `json:"usd"`
}

func (s *priceServiceImpl) fetchSimplePrices(ids []string) (map[string]float64, error) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
		s.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling CoinGecko simple price API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CoinGecko simple price API returned status %d", resp.StatusCode)
	}

	var body simplePriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding CoinGecko response: %w", err)
	}

	prices := make(map[string]float64, len(body))
	for id, entry := range body {
		prices[id] = entry.Usd
	}
	return prices, nil
}
