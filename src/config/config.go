package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	JWTSecret          string
	Port               string
	DatabasePath       string
	LogLevel           string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	MaxUploadSizeBytes int64

	// Historical FX rates consumed by the tax engine (RON/EUR per USD).
	RatesDataPath string

	// FxRatePolicy decides what happens when a historical rate is missing:
	// "strict" fails the whole report, "fallback" substitutes FxFallbackRonPerUsd.
	FxRatePolicy        string
	FxFallbackRonPerUsd float64

	// Default lot-consumption strategies when the request does not specify them.
	DefaultAssetStrategy string
	DefaultCashStrategy  string

	// Report cache lifetime.
	ReportCacheExpiry time.Duration

	// Current-price lookups (CoinGecko).
	PriceAPIBaseURL  string
	PriceCacheExpiry time.Duration
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getEnv("JWT_SECRET", "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes")
	if jwtSecret == "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes" {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET environment variable for production.")
	}

	accessTokenExpiry := getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 60*time.Minute)
	refreshTokenExpiry := getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour)

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	fxPolicy := strings.ToLower(getEnv("FX_RATE_POLICY", "strict"))
	if fxPolicy != "strict" && fxPolicy != "fallback" {
		log.Printf("WARNING: Invalid FX_RATE_POLICY '%s'. Using 'strict'.", fxPolicy)
		fxPolicy = "strict"
	}

	fallbackRateStr := getEnv("FX_FALLBACK_RON_PER_USD", "4.5")
	fallbackRate, err := strconv.ParseFloat(fallbackRateStr, 64)
	if err != nil || fallbackRate <= 0 {
		log.Printf("WARNING: Invalid FX_FALLBACK_RON_PER_USD '%s'. Using 4.5.", fallbackRateStr)
		fallbackRate = 4.5
	}

	Cfg = &AppConfig{
		JWTSecret:          jwtSecret,
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./portfoliotracker.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AccessTokenExpiry:  accessTokenExpiry,
		RefreshTokenExpiry: refreshTokenExpiry,
		MaxUploadSizeBytes: maxUploadSizeBytes,

		RatesDataPath: getEnv("RATES_DATA_PATH", "data/historicalExchangeRates.json"),

		FxRatePolicy:        fxPolicy,
		FxFallbackRonPerUsd: fallbackRate,

		DefaultAssetStrategy: getEnv("DEFAULT_ASSET_STRATEGY", "FIFO"),
		DefaultCashStrategy:  getEnv("DEFAULT_CASH_STRATEGY", "FIFO"),

		ReportCacheExpiry: getEnvAsDuration("REPORT_CACHE_EXPIRY", 15*time.Minute),

		PriceAPIBaseURL:  getEnv("PRICE_API_BASE_URL", "https://api.coingecko.com/api/v3"),
		PriceCacheExpiry: getEnvAsDuration("PRICE_CACHE_EXPIRY", 2*time.Minute),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, FxPolicy=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.FxRatePolicy)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
