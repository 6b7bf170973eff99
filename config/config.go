// config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"token-vesting-service/utils"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabaseURL    string
	GatewayToken   string
	AllowedOrigins string
	TokenDecimals  int32

	AuthServiceURL       string
	IssuanceServiceURL   string
	SettlementServiceURL string
	ServiceToken         string

	SweepInterval  time.Duration
	PollInterval   time.Duration
	ReportInterval time.Duration

	R2 utils.R2Config
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, failing on missing or malformed values.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:                 withDefault(getenv("PORT"), "5300"),
		DatabaseURL:          getenv("DATABASE_URL"),
		GatewayToken:         getenv("VESTING_SERVICE_TOKEN"),
		AllowedOrigins:       origins(getenv("ALLOWED_ORIGINS")),
		AuthServiceURL:       getenv("AUTH_SERVICE_URL"),
		IssuanceServiceURL:   getenv("ISSUANCE_SERVICE_URL"),
		SettlementServiceURL: getenv("SETTLEMENT_SERVICE_URL"),
		ServiceToken:         getenv("SERVICE_TOKEN"),
		R2: utils.R2Config{
			AccountID:       getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          getenv("R2_BUCKET_NAME"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if cfg.GatewayToken == "" {
		return nil, fmt.Errorf("VESTING_SERVICE_TOKEN environment variable not set")
	}
	if (cfg.IssuanceServiceURL != "" || cfg.SettlementServiceURL != "") && cfg.ServiceToken == "" {
		return nil, fmt.Errorf("SERVICE_TOKEN is required when ISSUANCE_SERVICE_URL or SETTLEMENT_SERVICE_URL is set")
	}

	decimals, err := strconv.ParseInt(withDefault(getenv("TOKEN_DECIMALS"), "18"), 10, 32)
	if err != nil || decimals < 0 || decimals > 36 {
		return nil, fmt.Errorf("TOKEN_DECIMALS must be an integer between 0 and 36, got %q", getenv("TOKEN_DECIMALS"))
	}
	cfg.TokenDecimals = int32(decimals)

	if cfg.SweepInterval, err = duration(getenv, "SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = duration(getenv, "POLL_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReportInterval, err = duration(getenv, "REPORT_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration like 30s or 5m, got %q", key, raw)
	}
	return d, nil
}

// origins normalizes a comma-separated origin list for the CORS middleware.
func origins(raw string) string {
	if raw == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		return "http://localhost:3000"
	}
	list := strings.Split(raw, ",")
	for i, origin := range list {
		list[i] = strings.TrimSpace(origin)
	}
	return strings.Join(list, ",")
}
