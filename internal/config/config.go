// Package config aggregates deployment metadata and environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"umanity/internal/orchestrator"
)

// DeploymentConfig models deployments.json: the chain and the contract
// addresses a deployment pinned.
type DeploymentConfig struct {
	ChainID   uint64 `json:"chainId"`
	Deployer  string `json:"deployer"`
	Contracts struct {
		DonationManager string `json:"DonationManager"`
		DonationToken   string `json:"DonationToken"`
	} `json:"contracts"`
}

// ServiceConfig is the HTTP surface.
type ServiceConfig struct {
	HTTPPort          int
	HMACSecret        string
	HMACClockSkew     time.Duration
	IdempotencyWindow time.Duration
	// PostgresDSN, when set, selects the durable replay store.
	PostgresDSN string
}

// ChainConfig is the read path plus token conventions.
type ChainConfig struct {
	RPCURL        string
	TokenDecimals int
	// NativeAmountWei is the fixed one-tap donation value, decimal wei.
	NativeAmountWei string
}

// WalletConfig is the signing path. An empty RPCURL selects the fake
// provider for local runs.
type WalletConfig struct {
	RPCURL string
	// Accounts seeds the fake provider when RPCURL is empty.
	Accounts []string
}

// LogConfig selects output format and verbosity.
type LogConfig struct {
	Level string
	Dev   bool
}

// AppConfig ties everything together.
type AppConfig struct {
	Deployment DeploymentConfig
	Service    ServiceConfig
	Chain      ChainConfig
	Wallet     WalletConfig
	Confirm    orchestrator.ConfirmPolicy
	Log        LogConfig
}

const defaultDeploymentsPath = "deployments.json"

// Load reads deployments.json and applies environment overrides. A .env
// file in the working directory is honored when present.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	deployCfg, err := loadDeployments(envOr("DEPLOYMENTS_PATH", defaultDeploymentsPath))
	if err != nil {
		return nil, fmt.Errorf("load deployments: %w", err)
	}
	if addr := os.Getenv("DONATION_CONTRACT_ADDRESS"); addr != "" {
		deployCfg.Contracts.DonationManager = addr
	}
	if addr := os.Getenv("DONATION_TOKEN_ADDRESS"); addr != "" {
		deployCfg.Contracts.DonationToken = addr
	}
	if id := envOrInt("CHAIN_ID", 0); id > 0 {
		deployCfg.ChainID = uint64(id)
	}

	serviceCfg := ServiceConfig{
		HTTPPort:          envOrInt("API_HTTP_PORT", 3000),
		HMACSecret:        envOr("HMAC_SECRET", ""),
		HMACClockSkew:     time.Duration(envOrInt("HMAC_CLOCK_SKEW_SECONDS", 60)) * time.Second,
		IdempotencyWindow: time.Duration(envOrInt("IDEMPOTENCY_WINDOW_SECONDS", 86400)) * time.Second,
		PostgresDSN:       envOr("POSTGRES_DSN", ""),
	}

	chainCfg := ChainConfig{
		RPCURL:          envOr("CHAIN_RPC_URL", ""),
		TokenDecimals:   envOrInt("TOKEN_DECIMALS", 6),
		NativeAmountWei: envOr("NATIVE_DONATION_WEI", "1000000000000000"),
	}

	walletCfg := WalletConfig{
		RPCURL: envOr("WALLET_RPC_URL", ""),
	}
	if acct := envOr("WALLET_FAKE_ACCOUNT", ""); acct != "" {
		walletCfg.Accounts = append(walletCfg.Accounts, acct)
	}

	confirm := orchestrator.ConfirmPolicy{
		Mode:                orchestrator.ConfirmMode(envOr("CONFIRM_MODE", "fixed")),
		SingleDelay:         time.Duration(envOrInt("CONFIRM_SINGLE_DELAY_MS", 3000)) * time.Millisecond,
		BatchDelay:          time.Duration(envOrInt("CONFIRM_BATCH_DELAY_MS", 5000)) * time.Millisecond,
		PollInitialInterval: time.Duration(envOrInt("CONFIRM_POLL_INITIAL_MS", 1000)) * time.Millisecond,
		PollMaxElapsed:      time.Duration(envOrInt("CONFIRM_POLL_MAX_ELAPSED_MS", 45000)) * time.Millisecond,
	}

	logCfg := LogConfig{
		Level: envOr("LOG_LEVEL", "info"),
		Dev:   envOr("LOG_DEV", "") == "true",
	}

	return &AppConfig{
		Deployment: *deployCfg,
		Service:    serviceCfg,
		Chain:      chainCfg,
		Wallet:     walletCfg,
		Confirm:    confirm,
		Log:        logCfg,
	}, nil
}

func loadDeployments(path string) (*DeploymentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DeploymentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
