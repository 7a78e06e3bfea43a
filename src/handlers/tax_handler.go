package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/username/portfoliotracker/src/config"
	"github.com/username/portfoliotracker/src/fx"
	"github.com/username/portfoliotracker/src/logger"
	"github.com/username/portfoliotracker/src/services"
	"github.com/username/portfoliotracker/src/tax"
	"github.com/username/portfoliotracker/src/utils"
)

type TaxHandler struct {
	taxService *services.TaxService
}

func NewTaxHandler(taxService *services.TaxService) *TaxHandler {
	return &TaxHandler{taxService: taxService}
}

// strategyConfigFromQuery reads assetStrategy/cashStrategy query parameters,
// falling back to the configured defaults when absent.
func strategyConfigFromQuery(r *http.Request) (tax.StrategyConfig, error) {
	assetParam := r.URL.Query().Get("assetStrategy")
	if assetParam == "" {
		assetParam = config.Cfg.DefaultAssetStrategy
	}
	cashParam := r.URL.Query().Get("cashStrategy")
	if cashParam == "" {
		cashParam = config.Cfg.DefaultCashStrategy
	}

	asset, err := tax.ParseStrategy(assetParam)
	if err != nil {
		return tax.StrategyConfig{}, err
	}
	cash, err := tax.ParseStrategy(cashParam)
	if err != nil {
		return tax.StrategyConfig{}, err
	}
	return tax.StrategyConfig{Asset: asset, Cash: cash}, nil
}

// HandleRomaniaTaxReport serves GET /api/tax/romania. Reports are cached per
// user and served with an ETag so polling clients get cheap 304s.
func (h *TaxHandler) HandleRomaniaTaxReport(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	year := time.Now().Year()
	if yearParam := r.URL.Query().Get("year"); yearParam != "" {
		year, err = strconv.Atoi(yearParam)
		if err != nil || year < 2009 || year > time.Now().Year()+1 {
			utils.SendJSONError(w, "Invalid year", http.StatusBadRequest)
			return
		}
	}

	cfg, err := strategyConfigFromQuery(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.taxService.TaxReport(userID, cfg, year)
	if err != nil {
		switch {
		case errors.Is(err, tax.ErrMalformedInput):
			utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, fx.ErrRateUnavailable):
			utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			logger.L.Error("Tax report computation failed", "userID", userID, "year", year, "error", err)
			utils.SendJSONError(w, "Failed to compute tax report", http.StatusInternalServerError)
		}
		return
	}

	if etag, err := utils.GenerateETag(report); err == nil {
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	utils.SendJSON(w, report, http.StatusOK)
}

// HandleCashflow serves GET /api/cashflow.
func (h *TaxHandler) HandleCashflow(w http.ResponseWriter, r *http.Request) {
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

	report, err := h.taxService.Cashflow(userID, cfg)
	if err != nil {
		if errors.Is(err, tax.ErrMalformedInput) || errors.Is(err, fx.ErrRateUnavailable) {
			utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		logger.L.Error("Cashflow computation failed", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to compute cashflow", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, report, http.StatusOK)
}
