package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/config"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/logging"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/metrics"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/provider"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/state"
)

// callsPerTurn bounds the provider calls a single turn may issue.
const callsPerTurn = 4

// #region app

// app holds everything a command needs once the config is loaded.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	cat      *rubric.Catalog
	store    *state.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	provider provider.Provider
	closers  []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Mode, cfg.Logging.Verbose)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	if a.cat, err = loadCatalog(cfg.Rubric); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Journal.Path != "" {
		store, err := state.NewStore(cfg.Journal.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	p, closeFn, err := newProvider(ctx, cfg.Provider)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeFn != nil {
		a.closers = append(a.closers, closeFn)
	}
	a.provider = provider.NewPaced(p, cfg.Provider.Rate, cfg.Provider.Burst)

	logger.Info("tutor ready",
		zap.String("provider", cfg.Provider.Kind),
		zap.String("rubric", a.cat.Version()),
		zap.String("journal", cfg.Journal.Path),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
}

func (a *app) engine() *orchestrator.Engine {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(a.logger),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithHistoryCap(a.cfg.Session.HistoryCap),
		orchestrator.WithTemperature(a.cfg.Session.Temperature),
	}
	if a.store != nil {
		opts = append(opts, orchestrator.WithStore(a.store))
	}
	return orchestrator.NewEngine(a.cat, a.provider, opts...)
}

// turnContext bounds one turn by the provider timeout of every call it may
// make. An unset timeout leaves the turn without a deadline.
func (a *app) turnContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := a.cfg.ProviderTimeout()
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, callsPerTurn*d)
}

// #endregion app

// #region loaders

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Verbose = true
	}
	return cfg, nil
}

func loadCatalog(path string) (*rubric.Catalog, error) {
	if path == "" {
		return rubric.Default(), nil
	}
	cat, err := rubric.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load rubric: %w", err)
	}
	return cat, nil
}

// newProvider builds the configured backend. The returned closer is nil
// for backends without a connection to release.
func newProvider(ctx context.Context, pc config.ProviderConfig) (provider.Provider, func() error, error) {
	switch pc.Kind {
	case config.KindGenAI:
		p, err := provider.NewGenAI(ctx, provider.GenAIOptions{APIKey: pc.APIKey, Models: pc.Models, BaseURL: pc.BaseURL})
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	case config.KindOpenAI:
		p, err := provider.NewOpenAI(provider.OpenAIOptions{APIKey: pc.APIKey, Models: pc.Models, BaseURL: pc.BaseURL})
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	case config.KindCodec:
		p, err := provider.NewCodec(pc.CodecAddr, pc.Models)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown provider kind %q", config.ErrInvalidConfig, pc.Kind)
}

// #endregion loaders

// #region metrics-server

// serveMetrics exposes reg on addr until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("metrics listening", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}

// #endregion metrics-server
