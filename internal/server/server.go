// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: every dependency in the system is
// constructed and wired here, in one place.
//
// DEPENDENCY CHAIN:
//
//	sqlite.DB ───────────────┐
//	ethclient (node RPC) ────┤
//	rpc.Client (bundler) ────┼→ chain.{BundlerClient, Provisioner, Relay}
//	rpc.Client (paymaster) ──┘       │
//	wallet.Deriver ──────────────────┤
//	contract.ClubManager ────────────┼→ service.{AuthService, ClubService}
//	auth.{TokenService, Google} ─────┘       │
//	                                         └→ handler.{AuthHandler, ClubHandler}
//
// Each layer only receives what it needs: services get repository
// interfaces, handlers get services, and nothing below the handler layer
// knows HTTP exists.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/farhanm/clubchain/internal/auth"
	"github.com/farhanm/clubchain/internal/chain"
	"github.com/farhanm/clubchain/internal/contract"
	"github.com/farhanm/clubchain/internal/handler"
	"github.com/farhanm/clubchain/internal/middleware"
	sqliteRepo "github.com/farhanm/clubchain/internal/repository/sqlite"
	"github.com/farhanm/clubchain/internal/service"
	"github.com/farhanm/clubchain/internal/wallet"
)

// Config holds server configuration. Address fields are hex strings as they
// arrive from the environment; New validates and parses them.
type Config struct {
	Port   int
	DBPath string

	// Chain endpoints.
	RPCURL       string
	BundlerURL   string
	PaymasterURL string

	// Deployed contract addresses, 0x-prefixed hex.
	ContractAddress   string
	EntryPointAddress string
	FactoryAddress    string

	// Secrets. WalletSecret derives user signing keys and must never be
	// the same value as JWTSecret: leaking a session-token secret must not
	// leak every user's funds.
	JWTSecret    string
	WalletSecret string

	// Google OAuth.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
}

// Server owns the router and the resources that must be released on
// shutdown: the database connection and the three RPC connections.
type Server struct {
	router    *chi.Mux
	config    Config
	logger    *slog.Logger
	db        *sqliteRepo.DB
	backend   *ethclient.Client
	bundler   *rpc.Client
	paymaster *rpc.Client
}

// New assembles the full dependency chain and returns a ready-to-start
// server. Dialing the RPC endpoints here is intentionally lazy on the geth
// side — rpc.Dial does not hit the network for HTTP endpoints — so New
// succeeds even when the chain is briefly unreachable, and the first
// request surfaces the failure instead.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	addrs, err := parseAddresses(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	backend, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("dialing node RPC: %w", err)
	}
	bundler, err := rpc.Dial(cfg.BundlerURL)
	if err != nil {
		db.Close()
		backend.Close()
		return nil, fmt.Errorf("dialing bundler: %w", err)
	}
	paymaster, err := rpc.Dial(cfg.PaymasterURL)
	if err != nil {
		db.Close()
		backend.Close()
		bundler.Close()
		return nil, fmt.Errorf("dialing paymaster: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		db:        db,
		backend:   backend,
		bundler:   bundler,
		paymaster: paymaster,
	}

	if err := s.setupRoutes(addrs); err != nil {
		s.closeResources()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

type contractAddresses struct {
	contract   common.Address
	entryPoint common.Address
	factory    common.Address
}

func parseAddresses(cfg Config) (contractAddresses, error) {
	fields := []struct {
		name  string
		value string
	}{
		{"contract address", cfg.ContractAddress},
		{"entry point address", cfg.EntryPointAddress},
		{"factory address", cfg.FactoryAddress},
	}
	for _, f := range fields {
		if !common.IsHexAddress(f.value) {
			return contractAddresses{}, fmt.Errorf("invalid %s: %q", f.name, f.value)
		}
	}
	return contractAddresses{
		contract:   common.HexToAddress(cfg.ContractAddress),
		entryPoint: common.HexToAddress(cfg.EntryPointAddress),
		factory:    common.HexToAddress(cfg.FactoryAddress),
	}, nil
}

// setupRoutes builds the service graph and mounts all routes.
//
// ROUTE STRUCTURE:
//
//	GET  /auth/google/login          → redirect to Google consent
//	GET  /auth/google/callback       → complete login, return JWT
//	GET  /api/me                     → current user profile        [auth]
//	POST /api/clubs                  → create a club               [auth]
//	POST /api/clubs/{clubID}/join    → join a club                 [auth]
//	POST /api/clubs/{clubID}/pay     → pay a membership fee        [auth]
//	GET  /api/clubs/{clubID}         → club details (chain + local)
//	GET  /healthz                    → liveness probe
func (s *Server) setupRoutes(addrs contractAddresses) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	deriver, err := wallet.NewDeriver(s.config.WalletSecret)
	if err != nil {
		return fmt.Errorf("creating wallet deriver: %w", err)
	}
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	google := auth.NewGoogleProvider(
		s.config.GoogleClientID,
		s.config.GoogleClientSecret,
		s.config.GoogleCallbackURL,
	)

	factory := chain.NewBundlerClient(chain.BundlerConfig{
		EntryPoint: addrs.entryPoint,
		Factory:    addrs.factory,
	}, s.bundler, s.paymaster, s.backend)
	provisioner := chain.NewProvisioner(deriver, s.backend, factory, s.logger)
	relay := chain.NewRelay(chain.DefaultRelayConfig(), s.logger)
	manager := contract.NewClubManager(addrs.contract, s.backend)

	authService := service.NewAuthService(s.db, provisioner, tokens, s.logger)
	clubService := service.NewClubService(
		provisioner, relay, manager, s.backend, s.db, s.db, s.logger)

	authHandler := handler.NewAuthHandler(google, authService, s.logger)
	clubHandler := handler.NewClubHandler(clubService, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.HandleGoogleLogin)
		r.Get("/google/callback", authHandler.HandleGoogleCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		// Public read: club state is public on-chain anyway.
		r.Get("/clubs/{clubID}", clubHandler.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Post("/clubs", clubHandler.HandleCreate)
			r.Post("/clubs/{clubID}/join", clubHandler.HandleJoin)
			r.Post("/clubs/{clubID}/pay", clubHandler.HandlePay)
		})
	})

	return nil
}

// Start runs the HTTP server until a shutdown signal arrives, then drains
// in-flight requests and releases resources.
//
// TIMEOUTS:
// The write timeout and the shutdown drain both have to accommodate the
// worst-case pipeline: 60s submit + 60s hash + 120s confirm, plus the
// receipt fetch. A conventional 15-second WriteTimeout would cut every
// successful club creation off mid-flight.
func (s *Server) Start() error {
	defer s.closeResources()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("rpc", s.config.RPCURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Long drain: an in-flight club creation may legitimately still be
		// waiting on confirmation.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) closeResources() {
	s.paymaster.Close()
	s.bundler.Close()
	s.backend.Close()
	if err := s.db.Close(); err != nil {
		s.logger.Error("closing database", slog.String("error", err.Error()))
	}
}
