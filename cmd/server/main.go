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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/FrameRelay/internal/adapters/http"
	"github.com/dkeye/FrameRelay/internal/adapters/rtc"
	wssignal "github.com/dkeye/FrameRelay/internal/adapters/signal"
	"github.com/dkeye/FrameRelay/internal/adapters/sink"
	"github.com/dkeye/FrameRelay/internal/app"
	"github.com/dkeye/FrameRelay/internal/app/orch"
	"github.com/dkeye/FrameRelay/internal/app/publisher"
	"github.com/dkeye/FrameRelay/internal/config"
	"github.com/dkeye/FrameRelay/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Server.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	snk, err := sink.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build sink")
	}

	pub := publisher.New(snk, cfg.Publisher, publisher.WithErrorHandler(func(err error) {
		log.Error().Err(err).Str("module", "publisher").Msg("background flush failed")
	}))

	o := &orch.Orchestrator{
		Registry:  app.NewRegistry(),
		Publisher: pub,
		Policy:    app.PolicyFromString(cfg.Relay.PeerPolicy),
	}
	if cfg.Relay.ValidateSDP {
		o.Validator = rtc.NewValidator()
	}

	ws := wssignal.NewSignalWSController(o,
		wssignal.NewChunkLimiter(cfg.Relay.ChunkRate, cfg.Relay.ChunkBurst),
		wssignal.Options{
			ReadLimit:    cfg.Server.ReadLimit,
			PingPeriod:   cfg.Server.PingPeriod,
			SendBuffer:   cfg.Server.SendBuffer,
			DefaultGroup: domain.GroupName(cfg.Server.DefaultGroup),
		})

	r := router.SetupRouter(ctx, cfg, o, ws)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("sink", cfg.Sink.Kind).Msg("FrameRelay server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		// Buffered frames go out before the sink is released.
		if err := pub.Close(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("final flush incomplete")
		}
		return snk.Close()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("exited with error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}
