package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"landledger/internal/adapters/exports"
	"landledger/internal/adapters/httpapi"
	"landledger/internal/authz"
	"landledger/internal/config"
	"landledger/internal/core"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

func newAuthorizer(cfg config.Config) (*authz.Authorizer, error) {
	mode, err := cfg.AuthzMode()
	if err != nil {
		return nil, err
	}
	if cfg.Authz.ModelPath != "" {
		return authz.NewFromFiles(cfg.Authz.ModelPath, cfg.Authz.PolicyPath, mode)
	}
	return authz.New(mode)
}

// newMetrics builds the service recorder and the /metrics handler for the
// configured backend.
func newMetrics(backend string) (core.MetricsRecorder, http.Handler, error) {
	if backend == config.MetricsExpvar {
		return core.NewExpvarMetricsRecorder(""), expvar.Handler(), nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return nil, nil, err
	}
	return rec, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

func runServe(ctx context.Context, opts *rootOptions, addr string) (err error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	metrics, metricsHandler, err := newMetrics(cfg.Metrics.Backend)
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, opts.verbose, core.WithMetricsRecorder(metrics))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	az, err := newAuthorizer(a.cfg)
	if err != nil {
		return err
	}
	if az.Mode() != authz.ModeEnforce {
		a.logger.Warn("authorization is not enforced", zap.String("mode", string(az.Mode())))
	}

	logger := core.NewZapLogger(a.logger)
	worker := exports.NewWorker(a.svc, a.blobs,
		exports.WithLogger(logger),
		exports.WithAuditRecorder(zapAudit{l: a.logger.Named("audit")}),
		exports.WithQueueSize(a.cfg.Exports.QueueSize),
		exports.WithRetention(a.cfg.Exports.Retain),
	)
	worker.Start()

	api := httpapi.New(a.svc, az,
		httpapi.WithLogger(logger),
		httpapi.WithExports(worker, a.blobs),
		httpapi.WithMetricsHandler(metricsHandler),
		httpapi.WithMaxUploadBytes(a.cfg.HTTP.MaxUploadBytes),
	)
	if addr == "" {
		addr = a.cfg.HTTP.Addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("addr", addr), zap.String("storage", string(a.cfg.Storage.Driver)), zap.String("blob", string(a.blobs.Driver())), zap.String("metrics", a.cfg.Metrics.Backend))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		_ = worker.Stop(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		a.logger.Warn("export worker shutdown", zap.Error(err))
	}
	return nil
}
