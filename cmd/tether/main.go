package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"tether/internal/bootstrap"
	"tether/internal/platform/config"
	apperrors "tether/internal/platform/errors"
	"tether/internal/platform/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

type rootOptions struct {
	home  string
	owner string
	json  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "tether",
		Short:         "Offline-first session tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.home, "home", "", "data directory (default $TETHER_HOME or ~/.tether)")
	root.PersistentFlags().StringVar(&opts.owner, "owner", "", "owner id (default from config)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON instead of text")

	root.AddCommand(newSessionCmd(opts))
	root.AddCommand(newTaskCmd(opts))
	root.AddCommand(newGoalCmd(opts))
	root.AddCommand(newSyncCmd(opts))
	root.AddCommand(newConflictsCmd(opts))
	root.AddCommand(newActivityCmd(opts))
	root.AddCommand(newRemoteCmd(opts))
	return root
}

func (o *rootOptions) config() (*config.Loader, config.Config, hclog.Logger, error) {
	loader, err := config.NewLoader(o.home)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	logger := logging.New(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	return loader, cfg, logger, nil
}

// ownerFor prefers the --owner flag over the configured owner.
func (o *rootOptions) ownerFor(cfg config.Config) (string, error) {
	owner := o.owner
	if owner == "" {
		owner = cfg.Owner
	}
	if owner == "" {
		return "", apperrors.Invalid("no owner: pass --owner or set owner in %s", "config.yaml")
	}
	return owner, nil
}

type appRun func(ctx context.Context, app *bootstrap.App, owner string) error

// withApp builds the device app for one command and closes it afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, run appRun) error {
	_, cfg, logger, err := o.config()
	if err != nil {
		return err
	}
	owner, err := o.ownerFor(cfg)
	if err != nil {
		return err
	}
	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close app", "error", err)
		}
	}()
	return run(cmd.Context(), app, owner)
}

func (o *rootOptions) print(w io.Writer, value any, text func(io.Writer)) {
	if o.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(value)
		return
	}
	text(w)
}

func parseTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperrors.Invalid("invalid time %q: use RFC3339, e.g. 2026-03-02T20:00:00Z", value)
	}
	return parsed, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func newActivityCmd(opts *rootOptions) *cobra.Command {
	activity := &cobra.Command{Use: "activity", Short: "Activity log"}

	var types []string
	var since string
	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent activity events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var from time.Time
			if since != "" {
				d, err := time.ParseDuration(since)
				if err != nil {
					return apperrors.Invalid("invalid --since %q", since)
				}
				from = time.Now().Add(-d)
			}
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				events, err := app.ActivityCLI.Tail(ctx, owner, types, from, limit)
				if err != nil {
					return err
				}
				opts.print(cmd.OutOrStdout(), events, func(w io.Writer) {
					if len(events) == 0 {
						_, _ = fmt.Fprintln(w, "no activity")
						return
					}
					for _, event := range events {
						_, _ = fmt.Fprintf(w, "%s  %-7s %-22s %s\n", formatTime(event.OccurredAt), event.Severity, event.Type, event.Message)
					}
				})
				return nil
			})
		},
	}
	tail.Flags().StringSliceVar(&types, "type", nil, "only these event types")
	tail.Flags().StringVar(&since, "since", "", "only events newer than this duration, e.g. 24h")
	tail.Flags().IntVar(&limit, "limit", 50, "maximum events")

	activity.AddCommand(tail)
	return activity
}

func newRemoteCmd(opts *rootOptions) *cobra.Command {
	remote := &cobra.Command{Use: "remote", Short: "Remote document store"}

	remote.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the document store over gRPC and HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, logger, err := opts.config()
			if err != nil {
				return err
			}
			server, err := bootstrap.NewServer(cfg, logger)
			if err != nil {
				return err
			}
			defer server.Close()
			logger.Info("remote store starting", "backend", cfg.Server.Backend, "grpc", cfg.Server.GRPCAddr, "http", cfg.Server.HTTPAddr)
			return server.Run(cmd.Context())
		},
	})
	return remote
}
