package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"tether/internal/bootstrap"
	plannerdto "tether/internal/modules/planner/dto"
)

func newTaskCmd(opts *rootOptions) *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}

	var description, due string
	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dueAt *time.Time
			if due != "" {
				at, err := parseTime(due)
				if err != nil {
					return err
				}
				dueAt = &at
			}
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.PlannerCLI.AddTask(ctx, owner, args[0], description, dueAt)
				if err != nil {
					return err
				}
				opts.printTasks(cmd.OutOrStdout(), []plannerdto.TaskOutput{out})
				return nil
			})
		},
	}
	add.Flags().StringVar(&description, "description", "", "task description")
	add.Flags().StringVar(&due, "due", "", "due time in RFC3339")

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.PlannerCLI.Tasks(ctx, owner, status)
				if err != nil {
					return err
				}
				opts.printTasks(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "open|done (default: both)")

	done := &cobra.Command{
		Use:   "done <task-id>",
		Short: "Mark a task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.PlannerCLI.DoneTask(ctx, owner, args[0])
				if err != nil {
					return err
				}
				opts.printTasks(cmd.OutOrStdout(), []plannerdto.TaskOutput{out})
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "rm <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				if err := app.PlannerCLI.RemoveTask(ctx, owner, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}

	task.AddCommand(add, list, done, remove)
	return task
}

func newGoalCmd(opts *rootOptions) *cobra.Command {
	goal := &cobra.Command{Use: "goal", Short: "Manage goals"}

	var target time.Duration
	set := &cobra.Command{
		Use:   "set <title>",
		Short: "Set a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.PlannerCLI.SetGoal(ctx, owner, args[0], target)
				if err != nil {
					return err
				}
				opts.printGoals(cmd.OutOrStdout(), []plannerdto.GoalOutput{out})
				return nil
			})
		},
	}
	set.Flags().DurationVar(&target, "target", 0, "target duration, e.g. 168h")

	goal.AddCommand(set, &cobra.Command{
		Use:   "list",
		Short: "List goals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.PlannerCLI.Goals(ctx, owner)
				if err != nil {
					return err
				}
				opts.printGoals(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "achieve <goal-id>",
		Short: "Mark a goal achieved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				out, err := app.PlannerCLI.AchieveGoal(ctx, owner, args[0])
				if err != nil {
					return err
				}
				opts.printGoals(cmd.OutOrStdout(), []plannerdto.GoalOutput{out})
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "rm <goal-id>",
		Short: "Delete a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App, owner string) error {
				if err := app.PlannerCLI.RemoveGoal(ctx, owner, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	})
	return goal
}

func (o *rootOptions) printTasks(w io.Writer, tasks []plannerdto.TaskOutput) {
	o.print(w, tasks, func(w io.Writer) {
		if len(tasks) == 0 {
			_, _ = fmt.Fprintln(w, "no tasks")
			return
		}
		for _, t := range tasks {
			flag := ""
			if t.Overdue {
				flag = "  overdue"
			}
			_, _ = fmt.Fprintf(w, "%s  %-4s %s  due %s  %s%s\n", t.ID, t.Status, t.Title, formatOptionalTime(t.DueAt), t.SyncStatus, flag)
		}
	})
}

func (o *rootOptions) printGoals(w io.Writer, goals []plannerdto.GoalOutput) {
	o.print(w, goals, func(w io.Writer) {
		if len(goals) == 0 {
			_, _ = fmt.Fprintln(w, "no goals")
			return
		}
		for _, g := range goals {
			_, _ = fmt.Fprintf(w, "%s  %s  target %s  achieved %s  %s\n", g.ID, g.Title, g.TargetDuration, formatOptionalTime(g.AchievedAt), g.SyncStatus)
		}
	})
}
