package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/auctionhouse/go/internal/auction"
	"github.com/mcdev12/auctionhouse/go/internal/auction/config"
	"github.com/mcdev12/auctionhouse/go/internal/auction/events"
	"github.com/mcdev12/auctionhouse/go/internal/auction/gateway"
	"github.com/mcdev12/auctionhouse/go/internal/auction/orchestrator"
	"github.com/mcdev12/auctionhouse/go/internal/auction/relay"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("auction server failed")
	}
	log.Info().Msg("auction server shutdown complete")
}

func setupLogging(cfg config.LogConfig) {
	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	clock := clockwork.NewRealClock()

	registry, err := auction.NewRegistry(clock, cfg.Lots())
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}
	app := auction.NewApp(registry, cfg.Auction.BreakDuration)

	var (
		mirrors     []events.Sink
		relayHealth http.Handler
	)
	if jsCfg, ok := cfg.JetStream(); ok {
		publisher, err := relay.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return fmt.Errorf("create JetStream relay: %w", err)
		}
		defer func() {
			if err := publisher.Close(5 * time.Second); err != nil {
				log.Error().Err(err).Msg("failed to close JetStream relay")
			}
		}()
		mirrors = append(mirrors, publisher)
		relayHealth = relay.NewRelayHealthChecker(publisher, jsCfg.MaxPending)
		log.Info().Str("url", jsCfg.URL).Str("stream", jsCfg.StreamName).Msg("mirroring events to JetStream")
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.ConnectionConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	gatewayService := gateway.NewService(gatewayConfig, app, mirrors...)

	orchConfig, err := cfg.Orchestrator()
	if err != nil {
		return err
	}
	orch, err := orchestrator.NewOrchestrator(registry, gatewayService.Broadcast(), orchConfig)
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)
	if relayHealth != nil {
		mux.Handle("/health/relay", relayHealth)
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     h2c.NewHandler(gateway.NewCORS(cfg.Server.AllowedOrigins).Handler(mux), &http2.Server{}),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	log.Info().
		Int("port", cfg.Server.Port).
		Int("items", len(cfg.Auction.Items)).
		Dur("break_duration", cfg.Auction.BreakDuration).
		Str("round_policy", cfg.Auction.RoundPolicy).
		Msg("starting auction server")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return gatewayService.Start(gctx)
	})
	g.Go(func() error {
		return orch.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
