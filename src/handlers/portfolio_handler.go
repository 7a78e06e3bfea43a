package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/username/portfoliotracker/src/logger"
	"github.com/username/portfoliotracker/src/services"
	"github.com/username/portfoliotracker/src/tax"
	"github.com/username/portfoliotracker/src/utils"
)

type PortfolioHandler struct {
	taxService   *services.TaxService
	priceService services.PriceService
}

func NewPortfolioHandler(taxService *services.TaxService, priceService services.PriceService) *PortfolioHandler {
	return &PortfolioHandler{taxService: taxService, priceService: priceService}
}

type holdingWithPrice struct {
	Asset           string  `json:"asset"`
	Quantity        float64 `json:"quantity"`
	CostBasisUsd    float64 `json:"costBasisUsd"`
	AvgCostUsd      float64 `json:"avgCostUsd"`
	Lots            int     `json:"lots"`
	CurrentPriceUsd float64 `json:"currentPriceUsd,omitempty"`
	MarketValueUsd  float64 `json:"marketValueUsd,omitempty"`
	PriceStatus     string  `json:"priceStatus"`
}

// HandleGetHoldings serves GET /api/holdings: open lots with current market
// valuations where a price source exists.
func (h *PortfolioHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	cfg, err := strategyConfigFromQuery(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	holdings, err := h.taxService.Holdings(userID, cfg)
	if err != nil {
		if errors.Is(err, tax.ErrMalformedInput) {
			utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		logger.L.Error("Holdings computation failed", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to compute holdings", http.StatusInternalServerError)
		return
	}

	symbols := make([]string, 0, len(holdings))
	for _, holding := range holdings {
		symbols = append(symbols, holding.Asset)
	}
	prices, err := h.priceService.GetCurrentPrices(symbols)
	if err != nil {
		// Valuations are best effort; the cost-basis view is still useful.
		logger.L.Warn("Price lookup failed, serving holdings without valuations", "userID", userID, "error", err)
	}

	out := make([]holdingWithPrice, 0, len(holdings))
	for _, holding := range holdings {
		entry := holdingWithPrice{
			Asset:        holding.Asset,
			Quantity:     holding.Quantity,
			CostBasisUsd: holding.CostBasisUsd,
			AvgCostUsd:   holding.AvgCostUsd,
			Lots:         holding.Lots,
			PriceStatus:  "UNAVAILABLE",
		}
		if info, ok := prices[holding.Asset]; ok && info.Status == "OK" {
			entry.CurrentPriceUsd = info.Price
			entry.MarketValueUsd = info.Price * holding.Quantity
			entry.PriceStatus = "OK"
		}
		out = append(out, entry)
	}
	utils.SendJSON(w, out, http.StatusOK)
}

// HandleGetCurrentPrices serves GET /api/prices/current?symbols=BTC,ETH.
func (h *PortfolioHandler) HandleGetCurrentPrices(w http.ResponseWriter, r *http.Request) {
	if _, err := GetUserIDFromContext(r.Context()); err != nil {
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		utils.SendJSONError(w, "symbols query parameter is required", http.StatusBadRequest)
		return
	}
	symbols := strings.Split(raw, ",")

	prices, err := h.priceService.GetCurrentPrices(symbols)
	if err != nil {
		logger.L.Error("Price lookup failed", "symbols", raw, "error", err)
		utils.SendJSONError(w, "Failed to fetch prices", http.StatusBadGateway)
		return
	}
	utils.SendJSON(w, prices, http.StatusOK)
}
