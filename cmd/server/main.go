package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/user/gh-trending-go/internal/config"
	"github.com/user/gh-trending-go/internal/crawler"
	"github.com/user/gh-trending-go/internal/server"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().Msg("Configuration loaded successfully")

	crawlerCfg := &crawler.Config{
		BaseURL:           cfg.Crawler.BaseURL,
		Timeout:           cfg.Crawler.Timeout,
		MaxRetries:        cfg.Crawler.MaxRetries,
		BackoffBase:       cfg.Crawler.BackoffBase,
		BackoffMax:        cfg.Crawler.BackoffMax,
		BackoffMultiplier: cfg.Crawler.BackoffMultiplier,
		MinDelay:          cfg.Crawler.MinDelay,
		MaxDelay:          cfg.Crawler.MaxDelay,
		UserAgents:        cfg.Crawler.UserAgents,
		ProxyURL:          cfg.Crawler.ProxyURL,
		BrowserFallback:   cfg.Crawler.BrowserFallback,
	}
	trendingCrawler, err := crawler.New(crawlerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create crawler")
	}
	log.Info().Msg("Crawler initialized")

	httpServer := server.NewServer(&cfg.Server, trendingCrawler)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().Msg("Trending service started successfully")

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	} else {
		log.Info().Msg("HTTP server stopped")
	}

	if err := trendingCrawler.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing crawler")
	} else {
		log.Info().Msg("Crawler closed")
	}

	log.Info().Msg("Graceful shutdown completed")
}
