package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"landledger/internal/adapters/exports"
	"landledger/internal/blob"
	"landledger/internal/core"
)

// newExportCmd renders one report through the export worker. Artifacts are
// staged in memory and written to --out or stdout.
func newExportCmd(opts *rootOptions) *cobra.Command {
	var project, report, format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a project report as CSV or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if project == "" {
				return errProjectRequired
			}
			r, ok := exports.ParseReport(report)
			if !ok {
				return fmt.Errorf("invalid --report %q (expected one of %v)", report, exports.Reports())
			}
			f, ok := exports.ParseFormat(format)
			if !ok {
				return fmt.Errorf("invalid --format %q (expected csv|json)", format)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				w := cmd.OutOrStdout()
				if out != "" {
					file, err := os.Create(out)
					if err != nil {
						return err
					}
					defer file.Close()
					w = file
				}
				return runExport(ctx, a, exports.Input{ProjectID: project, Report: r, Formats: []exports.Format{f}, RequestedBy: "cli"}, w)
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project id")
	cmd.Flags().StringVar(&report, "report", string(exports.ReportAcquisition), "lineage|acquisition|transactions|financial_transactions")
	cmd.Flags().StringVar(&format, "format", string(exports.FormatCSV), "csv|json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func runExport(ctx context.Context, a *app, in exports.Input, w io.Writer) error {
	staging := blob.NewMemory()
	worker := exports.NewWorker(a.svc, staging, exports.WithLogger(core.NewZapLogger(a.logger)))
	worker.Start()
	defer func() { _ = worker.Stop(context.Background()) }()

	queued, err := worker.EnqueueExport(ctx, in)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()
	rec, err := worker.Wait(ctx, queued.ID)
	if err != nil {
		return err
	}
	if rec.Status != exports.StatusSucceeded {
		return fmt.Errorf("export %s failed: %s", rec.ID, rec.Error)
	}
	artifact, ok := rec.Artifact(in.Formats[0])
	if !ok {
		return fmt.Errorf("export %s produced no %s artifact", rec.ID, in.Formats[0])
	}
	_, rc, err := staging.Get(ctx, artifact.Key)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return err
}
