package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"landledger/internal/plotcsv"
	"landledger/pkg/domain"
)

func newProjectAddCmd(opts *rootOptions) *cobra.Command {
	var p domain.Project
	cmd := &cobra.Command{
		Use:   "project-add",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				created, _, err := a.svc.CreateProject(ctx, p)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), created)
			})
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "project name (required)")
	cmd.Flags().StringVar(&p.SiteID, "site", "", "site identifier")
	cmd.Flags().StringVar(&p.Location, "location", "", "location")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// newUserAddCmd bootstraps accounts, typically the first super admin, before
// the API can be used.
func newUserAddCmd(opts *rootOptions) *cobra.Command {
	var (
		u        domain.User
		role     string
		projects []string
	)
	cmd := &cobra.Command{
		Use:   "user-add",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, ok := domain.ParseRole(role)
			if !ok {
				return fmt.Errorf("invalid --role %q", role)
			}
			u.Role = r
			u.Status = domain.UserActive
			u.ProjectIDs = projects
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				created, _, err := a.svc.CreateUser(ctx, u)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), created)
			})
		},
	}
	cmd.Flags().StringVar(&u.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&u.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleSuperAdmin), "role slug or label")
	cmd.Flags().StringSliceVar(&projects, "project", nil, "assigned project id (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newImportLineageCmd(opts *rootOptions) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "import-lineage FILE",
		Short: "Import a lineage CSV into a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				return errProjectRequired
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			entries, err := plotcsv.ReadLineage(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				report, err := plotcsv.NewImporter(a.svc).ImportLineage(ctx, project, entries)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project id")
	return cmd
}

func newImportPlotsCmd(opts *rootOptions) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "import-plots FILE",
		Short: "Import an acquisition chart CSV into a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				return errProjectRequired
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			plots, err := plotcsv.ReadChart(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				report, err := plotcsv.NewImporter(a.svc).ImportChart(ctx, project, plots)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project id")
	return cmd
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the dashboard summary of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if project == "" {
				return errProjectRequired
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				sum, err := a.svc.ProjectSummary(ctx, project)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sum)
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project id")
	return cmd
}

func newParseCellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse-cell CELL...",
		Short: "Split a freeform acquisition chart cell into its fields",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plot, err := plotcsv.ParsePlotCell(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), plot)
		},
	}
}
