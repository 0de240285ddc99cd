package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"landledger/internal/blob"
	"landledger/internal/config"
	"landledger/internal/core"
	"landledger/pkg/domain"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "landledger",
		Short:         "Land acquisition record keeper",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (LANDLEDGER_* env vars override it)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newProjectAddCmd(opts),
		newUserAddCmd(opts),
		newImportLineageCmd(opts),
		newImportPlotsCmd(opts),
		newExportCmd(opts),
		newSummaryCmd(opts),
		newParseCellCmd(),
	)
	return cmd
}

// app is the wiring shared by every command that touches records.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  domain.PersistentStore
	blobs  blob.Store
	svc    *core.Service
	trace  io.Closer
}

func openApp(ctx context.Context, cfg config.Config, verbose bool, svcOpts ...core.Option) (*app, error) {
	logger, err := newLogger(cfg, verbose)
	if err != nil {
		return nil, err
	}
	tracer, trace, err := openTracer(cfg.Trace.Output)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	closeTrace := func() {
		if trace != nil {
			_ = trace.Close()
		}
	}
	store, err := core.OpenPersistentStore(ctx, cfg.StorageOptions(), core.NewDefaultRulesEngine())
	if err != nil {
		closeTrace()
		_ = logger.Sync()
		return nil, fmt.Errorf("open store: %w", err)
	}
	if core.Wiped(store) {
		logger.Warn("stored records had another schema version and were discarded",
			zap.String("schema_version", domain.SchemaVersion))
	}
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		_ = core.CloseStore(store)
		closeTrace()
		_ = logger.Sync()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	base := []core.Option{
		core.WithLogger(core.NewZapLogger(logger)),
		core.WithAuditRecorder(zapAudit{l: logger.Named("audit")}),
		core.WithBlobStore(blobs),
	}
	if tracer != nil {
		base = append(base, core.WithTracer(tracer))
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		blobs:  blobs,
		svc:    core.NewService(store, append(base, svcOpts...)...),
		trace:  trace,
	}, nil
}

func (a *app) Close() error {
	err := core.CloseStore(a.store)
	if a.trace != nil {
		if cerr := a.trace.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	_ = a.logger.Sync()
	return err
}

// openTracer returns nil when output is empty. The closer is nil for the
// standard streams.
func openTracer(output string) (*core.JSONTraceTracer, io.Closer, error) {
	switch output {
	case "":
		return nil, nil, nil
	case "stderr":
		return core.NewJSONTracer(os.Stderr), nil, nil
	case "stdout":
		return core.NewJSONTracer(os.Stdout), nil, nil
	}
	f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace output: %w", err)
	}
	return core.NewJSONTracer(f), f, nil
}

func newLogger(cfg config.Config, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level := cfg.LogLevel()
	if verbose {
		level = zap.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// zapAudit writes audit entries as structured log lines.
type zapAudit struct{ l *zap.Logger }

func (z zapAudit) Record(_ context.Context, e core.AuditEntry) {
	fields := []zap.Field{
		zap.String("operation", e.Operation),
		zap.String("entity", string(e.Entity)),
		zap.String("action", string(e.Action)),
		zap.String("entity_id", e.EntityID),
		zap.String("status", string(e.Status)),
		zap.Duration("duration", e.Duration),
		zap.Time("at", e.Timestamp),
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
		z.l.Warn("audit", fields...)
		return
	}
	z.l.Info("audit", fields...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, opts.verbose)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, a)
}

var errProjectRequired = errors.New("--project is required")

const exportTimeout = 2 * time.Minute
