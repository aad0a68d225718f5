package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"umanity/internal/chain"
	"umanity/internal/config"
	"umanity/internal/donate"
	"umanity/internal/idempotency"
	"umanity/internal/logger"
	"umanity/internal/orchestrator"
	"umanity/internal/server"
	"umanity/internal/stats"
	"umanity/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()

	donationAddr := common.HexToAddress(cfg.Deployment.Contracts.DonationManager)
	tokenAddr := common.HexToAddress(cfg.Deployment.Contracts.DonationToken)

	var reader chain.Reader = chain.NewFakeReader()
	if cfg.Chain.RPCURL != "" {
		ethReader, err := chain.NewEthReader(ctx, chain.EthReaderConfig{
			RPCURL:          cfg.Chain.RPCURL,
			DonationAddress: cfg.Deployment.Contracts.DonationManager,
			TokenAddress:    cfg.Deployment.Contracts.DonationToken,
		})
		if err != nil {
			zlog.Fatal("chain reader init failed", zap.Error(err))
		}
		reader = ethReader
	} else {
		zlog.Warn("CHAIN_RPC_URL not set, using in-memory chain reader")
	}

	var provider wallet.Provider
	if cfg.Wallet.RPCURL != "" {
		rpcProvider, err := wallet.DialRPC(ctx, cfg.Wallet.RPCURL)
		if err != nil {
			zlog.Fatal("wallet provider dial failed", zap.Error(err))
		}
		defer rpcProvider.Close()
		provider = rpcProvider
	} else {
		zlog.Warn("WALLET_RPC_URL not set, using fake wallet provider")
		provider = wallet.NewFakeProvider(cfg.Wallet.Accounts...)
	}

	sessions := wallet.NewSessionProvider(provider)
	orch := orchestrator.New(provider, cfg.Deployment.ChainID, zlog)
	tracker := orchestrator.NewTracker(provider, cfg.Confirm, zlog)
	recon := stats.NewReconciler(reader, cfg.Chain.TokenDecimals, zlog)

	nativeAmount, ok := new(big.Int).SetString(cfg.Chain.NativeAmountWei, 10)
	if !ok {
		zlog.Fatal("invalid NATIVE_DONATION_WEI", zap.String("value", cfg.Chain.NativeAmountWei))
	}

	donations, err := donate.NewService(donate.Config{
		ChainID:         cfg.Deployment.ChainID,
		DonationAddress: donationAddr,
		TokenAddress:    tokenAddr,
		TokenDecimals:   cfg.Chain.TokenDecimals,
		NativeAmount:    nativeAmount,
	}, reader, orch, tracker, recon, zlog)
	if err != nil {
		zlog.Fatal("donation service init failed", zap.Error(err))
	}

	var store idempotency.Store = idempotency.NewMemoryStore()
	if cfg.Service.PostgresDSN != "" {
		pgStore, err := idempotency.NewPostgresStore(ctx, cfg.Service.PostgresDSN)
		if err != nil {
			zlog.Fatal("postgres store init failed", zap.Error(err))
		}
		defer pgStore.Close()
		store = pgStore
	}

	apiServer := server.NewServer(cfg, sessions, donations, recon, reader, store, zlog)

	go func() {
		if err := apiServer.Start(); err != nil {
			zlog.Info("server stopped", zap.Error(err))
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
}
