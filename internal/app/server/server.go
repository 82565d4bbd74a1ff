package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"cycle-discounts/internal/api"
	"cycle-discounts/internal/applicator"
	"cycle-discounts/internal/catalog"
	"cycle-discounts/internal/config"
	"cycle-discounts/internal/listener"
	"cycle-discounts/internal/matcher"
	"cycle-discounts/internal/pricing"
	"cycle-discounts/internal/storage"
)

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rule source + catalog: Postgres, or the YAML file in dev mode.
	var (
		src   storage.RuleSource
		cat   catalog.Catalog
		store *storage.Store
	)
	if cfg.UseFileSource() {
		fs := storage.NewFileSource(cfg.Rules.File)
		src, cat = fs, fs
		log.Info().Str("file", cfg.Rules.File).Msg("using file rule source")
	} else {
		st, err := storage.New(rootCtx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("init storage")
		}
		defer st.Close()
		src, cat, store = st, st, st
	}

	m := matcher.New(cat, matcher.WithAllowedProductTypes(cfg.Discount.AllowedProductTypes))

	// Display-price updates arriving over this service's API come in
	// through the storefront's price-recalculation hook; deployments
	// exposing the endpoint to untrusted callers must swap in their
	// own checks.
	app := applicator.New(cat, m, pricing.NewCalculator(), applicator.AuthzChecks{
		InPriceRecalc: func() bool { return true },
	})

	rules, err := src.LoadActiveRules(rootCtx)
	if err != nil {
		log.Fatal().Err(err).Msg("initial rule load")
	}
	app.SetRules(rules)
	log.Info().Int("rules", len(rules)).Msg("rule snapshot warmed")

	h := api.NewDiscountHandler(app, cat)
	r := api.Router(h)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Rule change listener (LISTEN/NOTIFY), Postgres mode only.
	if store != nil {
		go listener.ListenAndRefresh(rootCtx, store, app, cfg.Listener.Channel, cfg.Backoff())
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	waitForSignal()
	log.Info().Msg("shutdown...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = srv.Shutdown(shCtx)
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
