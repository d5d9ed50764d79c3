package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tether/internal/bootstrap"
	apperrors "tether/internal/platform/errors"
	"tether/internal/ui/views/conflicts"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	syncCmd := &cobra.Command{Use: "sync", Short: "Synchronise with the remote store"}

	syncCmd.AddCommand(&cobra.Command{
		Use:   "now",
		Short: "Run one sync pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				report, err := app.SyncCLI.Now(ctx, owner)
				opts.print(cmd.OutOrStdout(), report, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "pushed %d  pulled %d  conflicts %d  deferred %d  drained %d  dropped %d\n",
						report.Pushed, report.Pulled, report.Conflicts, report.Deferred, report.Drained, report.Dropped)
					for _, msg := range report.Errors {
						_, _ = fmt.Fprintln(w, "  error:", msg)
					}
				})
				return err
			})
		},
	})

	var owners []string
	run := &cobra.Command{
		Use:   "run",
		Short: "Sync continuously, reconnecting when the remote comes back",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, cfg, logger, err := opts.config()
			if err != nil {
				return err
			}
			if len(owners) == 0 {
				owner, err := opts.ownerFor(cfg)
				if err != nil {
					return err
				}
				owners = []string{owner}
			}
			app, err := bootstrap.New(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()
			if app.WatchConfig(loader) {
				logger.Info("watching config", "path", loader.Path())
			}
			return app.RunDaemon(cmd.Context(), owners, cfg.Metrics.Addr)
		},
	}
	run.Flags().StringSliceVar(&owners, "owners", nil, "owners to sync (default: --owner)")

	syncCmd.AddCommand(run, &cobra.Command{
		Use:   "status",
		Short: "Show sync health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				app.Monitor.Check(ctx)
				health, err := app.SyncCLI.Status(ctx, owner)
				if err != nil {
					return err
				}
				opts.print(cmd.OutOrStdout(), health, func(w io.Writer) {
					online := "offline"
					if health.Online {
						online = "online"
					}
					_, _ = fmt.Fprintf(w, "remote    %s (%s)\n", online, health.Quality)
					_, _ = fmt.Fprintf(w, "records   %d synced, %d pending, %d conflict\n", health.Synced, health.Pending, health.Conflict)
					_, _ = fmt.Fprintf(w, "queue     %d queued, %d unacknowledged failures\n", health.Queued, health.Failures)
					_, _ = fmt.Fprintf(w, "last sync %s\n", formatTime(health.LastSync))
					if health.LastError != "" {
						_, _ = fmt.Fprintf(w, "last err  %s\n", health.LastError)
					}
				})
				return nil
			})
		},
	})

	syncCmd.AddCommand(&cobra.Command{
		Use:   "queue",
		Short: "List queued remote operations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				ops, err := app.SyncCLI.Queue(ctx, owner)
				if err != nil {
					return err
				}
				opts.print(cmd.OutOrStdout(), ops, func(w io.Writer) {
					if len(ops) == 0 {
						_, _ = fmt.Fprintln(w, "queue empty")
						return
					}
					for _, op := range ops {
						_, _ = fmt.Fprintf(w, "%s  %-6s %s/%s  retries=%d next=%s  %s\n",
							op.ID, op.Kind, op.Collection, op.DocumentID, op.RetryCount, formatTime(op.NextAttemptAt), op.LastError)
					}
				})
				return nil
			})
		},
	})

	var all bool
	failures := &cobra.Command{
		Use:   "failures",
		Short: "List operations dropped after exhausting retries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.SyncCLI.Failures(ctx, owner, all)
				if err != nil {
					return err
				}
				opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
					if len(out) == 0 {
						_, _ = fmt.Fprintln(w, "no failures")
						return
					}
					for _, f := range out {
						ack := ""
						if f.AcknowledgedAt != nil {
							ack = "  acknowledged " + formatTime(*f.AcknowledgedAt)
						}
						_, _ = fmt.Fprintf(w, "%s  %-6s %s/%s  attempts=%d dropped=%s  %s%s\n",
							f.ID, f.Kind, f.Collection, f.DocumentID, f.Attempts, formatTime(f.DroppedAt), f.LastError, ack)
					}
				})
				return nil
			})
		},
	}
	failures.Flags().BoolVar(&all, "all", false, "include acknowledged failures")

	syncCmd.AddCommand(failures, &cobra.Command{
		Use:   "ack <failure-id>",
		Short: "Acknowledge a dropped operation so its record is retried",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, _ string) error {
				out, err := app.SyncCLI.Ack(ctx, args[0])
				if err != nil {
					return err
				}
				opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "acknowledged %s (%s/%s)\n", out.ID, out.Collection, out.DocumentID)
				})
				return nil
			})
		},
	})
	return syncCmd
}

func newConflictsCmd(opts *rootOptions) *cobra.Command {
	conflictsCmd := &cobra.Command{Use: "conflicts", Short: "Inspect and resolve sync conflicts"}

	conflictsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List unresolved conflicts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				detectConflicts(ctx, app, owner)
				out, err := app.SyncCLI.Conflicts(ctx, owner)
				if err != nil {
					return err
				}
				opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
					if len(out) == 0 {
						_, _ = fmt.Fprintln(w, "no conflicts")
						return
					}
					for _, c := range out {
						_, _ = fmt.Fprintf(w, "%s  detected %s\n%s\n", c.ID, formatTime(c.DetectedAt), indent(conflicts.Describe(c)))
					}
				})
				return nil
			})
		},
	})

	var interactive, accessible bool
	var choices []string
	resolve := &cobra.Command{
		Use:   "resolve [conflict-id local|remote]",
		Short: "Resolve one conflict, a full set with --choice, or all interactively",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				detectConflicts(ctx, app, owner)
				switch {
				case interactive:
					n, err := conflicts.Resolve(ctx, app.SyncCLI, owner, accessible || os.Getenv("ACCESSIBLE") != "")
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "resolved %d conflicts\n", n)
					return nil
				case len(args) == 2:
					if err := app.SyncCLI.Resolve(ctx, args[0], args[1]); err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "resolved %s with %s\n", args[0], args[1])
					return nil
				case len(choices) > 0 && len(args) == 0:
					set, err := parseChoices(choices)
					if err != nil {
						return err
					}
					if err := app.SyncCLI.ResolveAll(ctx, owner, set); err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "resolved %d conflicts\n", len(set))
					return nil
				default:
					return apperrors.Invalid("pass <conflict-id> <local|remote>, --choice id=choice for every conflict, or --interactive")
				}
			})
		},
	}
	resolve.Flags().BoolVarP(&interactive, "interactive", "i", false, "choose a version for every conflict in a form")
	resolve.Flags().BoolVar(&accessible, "accessible", false, "plain prompts instead of the form UI")
	resolve.Flags().StringArrayVar(&choices, "choice", nil, "conflict-id=local|remote; must cover every conflict")

	conflictsCmd.AddCommand(resolve)
	return conflictsCmd
}

// detectConflicts runs a pass so records left in conflict by an earlier
// process are registered again, with their current remote version when the
// remote is reachable and the local version only when it is not.
func detectConflicts(ctx context.Context, app *bootstrap.App, owner string) {
	if _, err := app.SyncCLI.Now(ctx, owner); err != nil {
		app.Logger.Warn("sync pass before conflict lookup failed", "owner", owner, "error", err)
	}
}

func parseChoices(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, value := range values {
		id, choice, ok := strings.Cut(value, "=")
		if !ok || id == "" || choice == "" {
			return nil, apperrors.Invalid("invalid --choice %q: want conflict-id=local|remote", value)
		}
		out[id] = choice
	}
	return out, nil
}

func indent(text string) string {
	return "  " + strings.ReplaceAll(text, "\n", "\n  ")
}
