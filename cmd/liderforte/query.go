package main

import (
	"context"

	"github.com/spf13/cobra"

	"liderforte/internal/core"
	"liderforte/pkg/domain"
)

func newEligibilityCmd(opts *rootOptions) *cobra.Command {
	var actor, cell string
	cmd := &cobra.Command{
		Use:   "eligibility",
		Short: "Score whether a cell can start a multiplication",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				summary, err := a.svc.ComputeEligibility(ctx, actor, cell)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "person id of the caller")
	cmd.Flags().StringVar(&cell, "cell", "", "cell id")
	_ = cmd.MarkFlagRequired("actor")
	_ = cmd.MarkFlagRequired("cell")
	return cmd
}

func newReadinessCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readiness",
		Short: "Evaluate or inspect multiplication readiness",
	}
	cmd.AddCommand(newReadinessEvaluateCmd(opts), newReadinessShowCmd(opts))
	return cmd
}

func newReadinessEvaluateCmd(opts *rootOptions) *cobra.Command {
	var org, metricsFile string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate every active cell of an organization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				report, err := a.svc.EvaluateReadinessBatch(ctx, org)
				if err != nil {
					return err
				}
				a.metrics.RecordReadiness(report)
				if metricsFile != "" {
					if err := a.metrics.WriteTextfile(metricsFile); err != nil {
						return err
					}
				}
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				return report.Err()
			})
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "organization id")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format to this path")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func newReadinessShowCmd(opts *rootOptions) *cobra.Command {
	var cell string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored readiness snapshot of a cell",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				snap, err := a.svc.GetReadiness(ctx, cell)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), snap)
			})
		},
	}
	cmd.Flags().StringVar(&cell, "cell", "", "cell id")
	_ = cmd.MarkFlagRequired("cell")
	return cmd
}

func newAlertsCmd(opts *rootOptions) *cobra.Command {
	var (
		actor, org  string
		types       []string
		maxPriority int
		limit       int
	)
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List readiness alerts visible to the caller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := core.AlertFilter{MaxPriority: maxPriority, Limit: limit}
			for _, t := range types {
				filter.Types = append(filter.Types, core.AlertType(t))
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				report, err := a.svc.ListAlerts(ctx, actor, org, filter)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "person id of the caller")
	cmd.Flags().StringVar(&org, "org", "", "organization id")
	cmd.Flags().StringSliceVar(&types, "type", nil, "alert types to keep (repeatable)")
	cmd.Flags().IntVar(&maxPriority, "max-priority", 0, "drop alerts with a larger priority number")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of alerts")
	_ = cmd.MarkFlagRequired("actor")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

// processView adds the derived workflow position to a process.
type processView struct {
	Process     domain.MultiplicationProcess `json:"process"`
	CurrentStep int                          `json:"current_step"`
	TotalSteps  int                          `json:"total_steps"`
	Progress    int                          `json:"progress"`
	Assignments []domain.MemberAssignment    `json:"assignments"`
}

func newProcessCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Inspect multiplication processes",
	}

	var actor, id string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print a process with its assignments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				proc, err := a.svc.GetProcess(ctx, actor, id)
				if err != nil {
					return err
				}
				rows, err := a.svc.ListAssignments(ctx, proc.ID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), processView{
					Process:     proc,
					CurrentStep: proc.CurrentStep(),
					TotalSteps:  proc.TotalSteps(),
					Progress:    proc.Progress(),
					Assignments: rows,
				})
			})
		},
	}
	show.Flags().StringVar(&actor, "actor", "", "person id of the caller")
	show.Flags().StringVar(&id, "id", "", "process id")
	_ = show.MarkFlagRequired("actor")
	_ = show.MarkFlagRequired("id")

	var listActor, org string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the processes of an organization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				procs, err := a.svc.ListProcesses(ctx, listActor, org)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), procs)
			})
		},
	}
	list.Flags().StringVar(&listActor, "actor", "", "person id of the caller")
	list.Flags().StringVar(&org, "org", "", "organization id")
	_ = list.MarkFlagRequired("actor")
	_ = list.MarkFlagRequired("org")

	cmd.AddCommand(show, list)
	return cmd
}

func newArchiveCmd(opts *rootOptions) *cobra.Command {
	var org string
	cmd := &cobra.Command{
		Use:   "archives",
		Short: "List archived multiplication completions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				infos, err := a.svc.ListArchives(ctx, org)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), infos)
			})
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "organization id")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
