package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/portfoliotracker/src/config"
	"github.com/username/portfoliotracker/src/database"
	"github.com/username/portfoliotracker/src/fx"
	"github.com/username/portfoliotracker/src/handlers"
	"github.com/username/portfoliotracker/src/logger"
	"github.com/username/portfoliotracker/src/parsers"
	"github.com/username/portfoliotracker/src/security"
	"github.com/username/portfoliotracker/src/services"
	"github.com/username/portfoliotracker/src/tax"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware tags every request so log lines from one request can
// be correlated. An incoming X-Request-ID is honored for multi-hop setups.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		logger.L.Debug("Request received",
			"requestId", requestID,
			"method", r.Method,
			"path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Portfoliotracker backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}

	logger.L.Info("Loading historical exchange rates...", "path", config.Cfg.RatesDataPath)
	fxPolicy, err := fx.ParsePolicy(config.Cfg.FxRatePolicy)
	if err != nil {
		logger.L.Error("Invalid FX rate policy", "error", err)
		os.Exit(1)
	}
	rates, err := fx.NewHistoricalProvider(config.Cfg.RatesDataPath, fxPolicy, config.Cfg.FxFallbackRonPerUsd)
	if err != nil {
		logger.L.Error("Failed to load historical rates", "error", err)
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(config.Cfg.ReportCacheExpiry, 30*time.Minute)

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret)
	calculator := tax.NewCalculator(rates, tax.Options{
		Policy:            fxPolicy,
		FallbackRonPerUsd: config.Cfg.FxFallbackRonPerUsd,
	})
	txService := services.NewTransactionService(database.DB)
	taxService := services.NewTaxService(txService, calculator, reportCache)
	priceService := services.NewPriceService(config.Cfg.PriceAPIBaseURL, config.Cfg.PriceCacheExpiry)
	csvParser := parsers.NewCSVParser()

	userHandler := handlers.NewUserHandler(authService)
	apiKeyHandler := handlers.NewAPIKeyHandler(authService)
	txHandler := handlers.NewTransactionHandler(txService, taxService, csvParser)
	taxHandler := handlers.NewTaxHandler(taxService)
	portfolioHandler := handlers.NewPortfolioHandler(taxService, priceService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/auth/register", userHandler.RegisterUserHandler)
	apiRouter.HandleFunc("POST /api/auth/login", userHandler.LoginUserHandler)
	apiRouter.HandleFunc("POST /api/auth/refresh", userHandler.RefreshTokenHandler)
	apiRouter.HandleFunc("POST /api/auth/logout", userHandler.AuthMiddleware(userHandler.LogoutUserHandler))

	apiRouter.HandleFunc("POST /api/keys", userHandler.AuthMiddleware(apiKeyHandler.HandleCreateAPIKey))
	apiRouter.HandleFunc("GET /api/keys", userHandler.AuthMiddleware(apiKeyHandler.HandleListAPIKeys))
	apiRouter.HandleFunc("DELETE /api/keys/{id}", userHandler.AuthMiddleware(apiKeyHandler.HandleDeleteAPIKey))

	apiRouter.HandleFunc("GET /api/transactions", userHandler.AuthMiddleware(txHandler.HandleListTransactions))
	apiRouter.HandleFunc("POST /api/transactions", userHandler.AuthMiddleware(txHandler.HandleCreateTransaction))
	apiRouter.HandleFunc("POST /api/transactions/import", userHandler.AuthMiddleware(txHandler.HandleImportTransactions))
	apiRouter.HandleFunc("DELETE /api/transactions/{id}", userHandler.AuthMiddleware(txHandler.HandleDeleteTransaction))
	apiRouter.HandleFunc("DELETE /api/transactions/all", userHandler.AuthMiddleware(txHandler.HandleDeleteAllTransactions))

	apiRouter.HandleFunc("GET /api/tax/romania", userHandler.AuthMiddleware(taxHandler.HandleRomaniaTaxReport))
	apiRouter.HandleFunc("GET /api/cashflow", userHandler.AuthMiddleware(taxHandler.HandleCashflow))
	apiRouter.HandleFunc("GET /api/holdings", userHandler.AuthMiddleware(portfolioHandler.HandleGetHoldings))
	apiRouter.HandleFunc("GET /api/prices/current", userHandler.AuthMiddleware(portfolioHandler.HandleGetCurrentPrices))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Portfoliotracker backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(requestIDMiddleware(rootMux)))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
