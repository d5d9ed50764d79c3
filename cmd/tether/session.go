package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"tether/internal/bootstrap"
	sessiondto "tether/internal/modules/session/dto"
	apperrors "tether/internal/platform/errors"
	"tether/internal/ui/views/watch"
)

func newSessionCmd(opts *rootOptions) *cobra.Command {
	session := &cobra.Command{Use: "session", Short: "Track sessions"}

	var (
		goal      time.Duration
		hardcore  bool
		approval  bool
		keyholder string
		notes     string
	)
	start := &cobra.Command{
		Use:   "start",
		Short: "Start a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				input := sessiondto.StartInput{
					OwnerID:                   owner,
					Hardcore:                  hardcore,
					KeyholderApprovalRequired: approval,
					KeyholderUserID:           keyholder,
					Notes:                     notes,
				}
				if goal > 0 {
					input.GoalDuration = &goal
				}
				out, err := app.SessionCLI.Start(ctx, input)
				if err != nil {
					return err
				}
				opts.printSession(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	start.Flags().DurationVar(&goal, "goal", 0, "goal duration, e.g. 72h")
	start.Flags().BoolVar(&hardcore, "hardcore", false, "refuse to end before the goal")
	start.Flags().BoolVar(&approval, "approval", false, "require keyholder approval to end")
	start.Flags().StringVar(&keyholder, "keyholder", "", "keyholder user id")
	start.Flags().StringVar(&notes, "notes", "", "free-form notes")

	var (
		pauseID     string
		reason      string
		initiatedBy string
		override    bool
	)
	pause := &cobra.Command{
		Use:   "pause",
		Short: "Pause the open session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.SessionCLI.Pause(ctx, owner, pauseID, reason, initiatedBy, override)
				if err != nil {
					return err
				}
				opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "paused %s at %s\n", out.Session.ID, formatTime(out.Event.StartTime))
					if out.Event.OverrideUsed {
						_, _ = fmt.Fprintln(w, "cooldown overridden")
					}
				})
				return nil
			})
		},
	}
	pause.Flags().StringVar(&pauseID, "id", "", "session id (default: the open session)")
	pause.Flags().StringVar(&reason, "reason", "", "pause reason")
	pause.Flags().StringVar(&initiatedBy, "by", sessiondto.InitiatedBySubmissive, "who paused: submissive|keyholder|system")
	pause.Flags().BoolVar(&override, "override", false, "keyholder override of an active cooldown")

	var resumeID string
	resume := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.SessionCLI.Resume(ctx, owner, resumeID)
				if err != nil {
					return err
				}
				opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "resumed %s", out.Session.ID)
					if out.Event != nil {
						_, _ = fmt.Fprintf(w, " after %s", out.Event.Duration.Round(time.Second))
					}
					_, _ = fmt.Fprintln(w)
					if out.Session.CooldownRemaining > 0 {
						_, _ = fmt.Fprintf(w, "next pause allowed in %s\n", out.Session.CooldownRemaining.Round(time.Second))
					}
				})
				return nil
			})
		},
	}
	resume.Flags().StringVar(&resumeID, "id", "", "session id (default: the open session)")

	var (
		endID      string
		endReason  string
		endAt      string
		credential string
		approvedBy string
	)
	end := &cobra.Command{
		Use:   "end",
		Short: "End the open session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			input := sessiondto.EndInput{SessionID: endID, Reason: endReason, Credential: credential, ApprovedBy: approvedBy}
			if endAt != "" {
				at, err := parseTime(endAt)
				if err != nil {
					return err
				}
				input.EndTime = &at
			}
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				input.OwnerID = owner
				out, err := app.SessionCLI.End(ctx, input)
				if err != nil {
					return err
				}
				opts.printSession(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	end.Flags().StringVar(&endID, "id", "", "session id (default: the open session)")
	end.Flags().StringVar(&endReason, "reason", "", "end reason")
	end.Flags().StringVar(&endAt, "at", "", "end time in RFC3339 (default: now)")
	end.Flags().StringVar(&credential, "credential", "", "emergency credential")
	end.Flags().StringVar(&approvedBy, "approved-by", "", "approving keyholder id")

	var unlockID, unlockCredential, unlockReason string
	unlock := &cobra.Command{
		Use:   "unlock",
		Short: "Emergency unlock with the owner credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.SessionCLI.Unlock(ctx, owner, unlockID, unlockCredential, unlockReason)
				if err != nil {
					return err
				}
				opts.printSession(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	unlock.Flags().StringVar(&unlockID, "id", "", "session id (default: the open session)")
	unlock.Flags().StringVar(&unlockCredential, "credential", "", "emergency credential")
	unlock.Flags().StringVar(&unlockReason, "reason", "", "unlock reason")

	var editID string
	editStart := &cobra.Command{
		Use:   "edit-start <time>",
		Short: "Correct the start time of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseTime(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.SessionCLI.EditStart(ctx, owner, editID, at)
				if err != nil {
					return err
				}
				opts.printSession(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	editStart.Flags().StringVar(&editID, "id", "", "session id (default: the open session)")

	var goalID string
	var clearGoal bool
	goalCmd := &cobra.Command{
		Use:   "goal [duration]",
		Short: "Change or clear the goal of an open session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target *time.Duration
			switch {
			case clearGoal && len(args) == 0:
			case !clearGoal && len(args) == 1:
				d, err := time.ParseDuration(args[0])
				if err != nil {
					return apperrors.Invalid("invalid goal %q: use a duration such as 72h", args[0])
				}
				target = &d
			default:
				return apperrors.Invalid("pass a goal duration or --clear")
			}
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.SessionCLI.EditGoal(ctx, owner, goalID, target)
				if err != nil {
					return err
				}
				opts.printSession(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	goalCmd.Flags().StringVar(&goalID, "id", "", "session id (default: the open session)")
	goalCmd.Flags().BoolVar(&clearGoal, "clear", false, "remove the goal")

	show := &cobra.Command{
		Use:   "show [session-id]",
		Short: "Show a session (default: the open session)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.SessionCLI.Show(ctx, owner, firstArg(args))
				if err != nil {
					return err
				}
				opts.printSession(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	var limit int
	history := &cobra.Command{
		Use:   "history",
		Short: "List past sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				sessions, err := app.SessionCLI.History(ctx, owner, limit)
				if err != nil {
					return err
				}
				opts.print(cmd.OutOrStdout(), sessions, func(w io.Writer) {
					if len(sessions) == 0 {
						_, _ = fmt.Fprintln(w, "no sessions")
						return
					}
					for _, s := range sessions {
						_, _ = fmt.Fprintf(w, "%s  %s  %s  %s  %s\n", s.ID, formatTime(s.StartTime), formatOptionalTime(s.EndTime), watch.FormatElapsed(s.EffectiveElapsed), s.SyncStatus)
					}
				})
				return nil
			})
		},
	}
	history.Flags().IntVar(&limit, "limit", 20, "maximum sessions")

	events := &cobra.Command{
		Use:   "events [session-id]",
		Short: "List pause events of a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.SessionCLI.Events(ctx, owner, firstArg(args))
				if err != nil {
					return err
				}
				opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
					if len(out) == 0 {
						_, _ = fmt.Fprintln(w, "no pause events")
						return
					}
					for _, e := range out {
						_, _ = fmt.Fprintf(w, "%s  %s  %s  %-10s %s\n", formatTime(e.StartTime), formatOptionalTime(e.EndTime), e.Duration.Round(time.Second), e.InitiatedBy, e.Reason)
					}
				})
				return nil
			})
		},
	}

	var lookahead time.Duration
	reminders := &cobra.Command{
		Use:   "reminders",
		Short: "List open sessions whose goal ends soon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.SessionCLI.Reminders(ctx, owner, lookahead)
				if err != nil {
					return err
				}
				opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
					if len(out) == 0 {
						_, _ = fmt.Fprintln(w, "no reminders")
						return
					}
					for _, r := range out {
						_, _ = fmt.Fprintf(w, "%s  goal %s ends %s\n", r.SessionID, r.GoalDuration, formatTime(r.GoalEnd))
					}
				})
				return nil
			})
		},
	}
	reminders.Flags().DurationVar(&lookahead, "within", time.Hour, "reminder window")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of the open session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				program := tea.NewProgram(watch.New(app.SessionCLI, owner, nil), tea.WithAltScreen(), tea.WithContext(ctx))
				_, err := program.Run()
				return err
			})
		},
	}

	session.AddCommand(start, pause, resume, end, unlock, editStart, goalCmd, show, history, events, reminders, watchCmd, newCredentialCmd(opts))
	return session
}

func newCredentialCmd(opts *rootOptions) *cobra.Command {
	credential := &cobra.Command{Use: "credential", Short: "Emergency unlock credential"}

	var secret string
	set := &cobra.Command{
		Use:   "set",
		Short: "Set the emergency credential (reads stdin when --secret is empty)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("read secret: %w", err)
				}
				secret = strings.TrimSpace(line)
			}
			if secret == "" {
				return apperrors.Invalid("empty credential")
			}
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				if err := app.SessionCLI.SetCredential(ctx, owner, secret); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "credential updated")
				return nil
			})
		},
	}
	set.Flags().StringVar(&secret, "secret", "", "credential secret")

	credential.AddCommand(set)
	return credential
}

func (o *rootOptions) printSession(w io.Writer, s sessiondto.SessionOutput) {
	o.print(w, s, func(w io.Writer) {
		state := "running"
		switch {
		case s.EndTime != nil:
			state = "ended " + formatTime(*s.EndTime)
		case s.IsPaused:
			state = "paused"
		}
		_, _ = fmt.Fprintf(w, "session %s  %s\n", s.ID, state)
		_, _ = fmt.Fprintf(w, "  started  %s\n", formatTime(s.StartTime))
		_, _ = fmt.Fprintf(w, "  elapsed  %s\n", watch.FormatElapsed(s.EffectiveElapsed))
		if s.GoalDuration != nil {
			_, _ = fmt.Fprintf(w, "  goal     %s\n", s.GoalDuration)
		}
		if s.CooldownRemaining > 0 {
			_, _ = fmt.Fprintf(w, "  cooldown %s\n", s.CooldownRemaining.Round(time.Second))
		}
		if s.EndReason != "" {
			_, _ = fmt.Fprintf(w, "  reason   %s\n", s.EndReason)
		}
		_, _ = fmt.Fprintf(w, "  sync     %s\n", s.SyncStatus)
		for _, warning := range s.Warnings {
			_, _ = fmt.Fprintf(w, "  warning  %s\n", warning)
		}
	})
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
