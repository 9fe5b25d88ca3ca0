// Command oxidized runs the indexer: config/store bootstrap, the
// background scheduler and janitor, and the HTTP read API, all wired
// together and shut down on SIGINT/SIGTERM.
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

	"github.com/oxidized-project/oxidized/internal/api"
	"github.com/oxidized-project/oxidized/internal/config"
	"github.com/oxidized-project/oxidized/internal/filter"
	"github.com/oxidized-project/oxidized/internal/janitor"
	"github.com/oxidized-project/oxidized/internal/resolver"
	"github.com/oxidized-project/oxidized/internal/scheduler"
	"github.com/oxidized-project/oxidized/internal/spider"
	"github.com/oxidized-project/oxidized/internal/store"
	"github.com/oxidized-project/oxidized/internal/trackers"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	configDir := os.Getenv("OXIDIZED_CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}

	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("opening store")
	}
	defer st.Close()

	var sp *spider.Spider
	if cfg.App.Spider {
		sp, err = spider.New()
		if err != nil {
			log.Fatal().Err(err).Msg("locating magneticod")
		}
	}

	var rv *resolver.Resolver
	if cfg.App.UpdateInfo {
		rv, err = resolver.New("data/resolver")
		if err != nil {
			log.Fatal().Err(err).Msg("starting metadata resolver")
		}
		defer rv.Close()
	}

	var reg *trackers.Registry
	if cfg.App.UpdateTrackers {
		reg = trackers.NewRegistry(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ft *filter.Filter
	if cfg.App.FilterNSFW {
		ft = filter.New(ctx, nil)
	}

	sched := scheduler.New(scheduler.Config{
		Spider:         cfg.App.Spider,
		UpdateInfo:     cfg.App.UpdateInfo,
		UpdateTrackers: cfg.App.UpdateTrackers,
		FilterNSFW:     cfg.App.FilterNSFW,
		Clean:          cfg.App.Clean,
	}, st, rv, reg, sp, ft)
	go sched.Run(ctx)

	jan := janitor.New(janitor.Config{Clean: cfg.App.Clean}, st)
	go jan.Run(ctx)

	handler := api.New(st, ft, cfg.Auth.APIKey)
	httpSrv := &http.Server{Addr: ":9118", Handler: handler}
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("starting api server")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("api server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutting down api server")
	}
}
