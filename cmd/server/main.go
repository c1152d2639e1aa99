// Package main is the entry point for the clubchain server.
//
// Its job is deliberately small: read configuration from the environment,
// build a logger, and hand both to internal/server, which owns all the
// wiring. Everything here either succeeds or exits — there is no degraded
// mode, because a wallet backend that cannot reach its chain or derive
// keys has nothing useful to serve.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/farhanm/clubchain/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("configuration error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Ensure the data directory exists before SQLite tries to create the file.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(cfg.DBPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until shutdown (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadConfig assembles server.Config from the environment.
//
// REQUIRED VARIABLES:
//
//	RPC_URL               chain node JSON-RPC endpoint
//	BUNDLER_URL           ERC-4337 bundler endpoint
//	PAYMASTER_URL         paymaster sponsorship endpoint
//	CONTRACT_ADDRESS      deployed ClubManager contract
//	ENTRYPOINT_ADDRESS    ERC-4337 entry point contract
//	FACTORY_ADDRESS       smart-account factory contract
//	JWT_SECRET            session token signing secret   ($(openssl rand -hex 32))
//	WALLET_MASTER_SECRET  key-derivation secret — distinct from JWT_SECRET,
//	                      and NEVER rotated: rotating it silently moves
//	                      every user to a different smart account
//	GOOGLE_CLIENT_ID      Google OAuth credentials
//	GOOGLE_CLIENT_SECRET
//
// OPTIONAL:
//
//	PORT                 default 8080
//	DB_PATH              default data/clubchain.db
//	GOOGLE_CALLBACK_URL  default http://localhost:{PORT}/auth/google/callback
func loadConfig() (server.Config, error) {
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return server.Config{}, fmt.Errorf("invalid PORT value %q", portStr)
		}
	}

	dbPath := "data/clubchain.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}

	callbackURL := os.Getenv("GOOGLE_CALLBACK_URL")
	if callbackURL == "" {
		callbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", port)
	}

	cfg := server.Config{
		Port:               port,
		DBPath:             dbPath,
		RPCURL:             os.Getenv("RPC_URL"),
		BundlerURL:         os.Getenv("BUNDLER_URL"),
		PaymasterURL:       os.Getenv("PAYMASTER_URL"),
		ContractAddress:    os.Getenv("CONTRACT_ADDRESS"),
		EntryPointAddress:  os.Getenv("ENTRYPOINT_ADDRESS"),
		FactoryAddress:     os.Getenv("FACTORY_ADDRESS"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		WalletSecret:       os.Getenv("WALLET_MASTER_SECRET"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:  callbackURL,
	}

	required := []struct {
		name  string
		value string
	}{
		{"RPC_URL", cfg.RPCURL},
		{"BUNDLER_URL", cfg.BundlerURL},
		{"PAYMASTER_URL", cfg.PaymasterURL},
		{"CONTRACT_ADDRESS", cfg.ContractAddress},
		{"ENTRYPOINT_ADDRESS", cfg.EntryPointAddress},
		{"FACTORY_ADDRESS", cfg.FactoryAddress},
		{"JWT_SECRET", cfg.JWTSecret},
		{"WALLET_MASTER_SECRET", cfg.WalletSecret},
		{"GOOGLE_CLIENT_ID", cfg.GoogleClientID},
		{"GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return server.Config{}, fmt.Errorf("%s must be set", r.name)
		}
	}

	if cfg.JWTSecret == cfg.WalletSecret {
		return server.Config{}, fmt.Errorf("JWT_SECRET and WALLET_MASTER_SECRET must differ")
	}

	return cfg, nil
}
