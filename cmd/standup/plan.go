package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/store"
	"github.com/spf13/cobra"
)

var (
	reopenUser   string
	reopenReason string
	reopenActor  string
	lockToday    string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect and administer daily plans",
}

var planShowCmd = &cobra.Command{
	Use:   "show <user-id> <date>",
	Short: "Show a user's plan for a date",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlanShow,
}

var planReopenCmd = &cobra.Command{
	Use:   "reopen <plan-id>",
	Short: "Reopen a reviewed day so it can be reviewed again",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanReopen,
}

var planLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Lock plans older than the configured window",
	Args:  cobra.NoArgs,
	RunE:  runPlanLock,
}

func init() {
	planReopenCmd.Flags().StringVar(&reopenUser, "user", "", "Owner of the plan (required)")
	planReopenCmd.Flags().StringVar(&reopenReason, "reason", "", "Reason recorded in the audit log")
	planReopenCmd.Flags().StringVar(&reopenActor, "actor", "admin", "Actor recorded in the audit log")
	planReopenCmd.MarkFlagRequired("user")

	planLockCmd.Flags().StringVar(&lockToday, "today", "", "Reference date (YYYY-MM-DD, default today)")

	planCmd.AddCommand(planShowCmd)
	planCmd.AddCommand(planReopenCmd)
	planCmd.AddCommand(planLockCmd)
}

func runPlanShow(cmd *cobra.Command, args []string) error {
	userID := args[0]
	date, err := dates.Parse(args[1])
	if err != nil {
		return err
	}
	ctx := context.Background()

	eng, err := resolveEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	plan, err := eng.store.GetPlanByDate(ctx, userID, date)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no plan for %s on %s", userID, date)
	}
	if err != nil {
		return err
	}
	view, err := eng.GetPlan(ctx, userID, plan.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, view)
	}

	reviewed := "no"
	if view.Plan.ReviewedAt != nil {
		reviewed = view.Plan.ReviewedAt.Format(time.RFC3339)
	}
	fmt.Fprintf(out, "Plan:      %s\n", view.Plan.ID)
	fmt.Fprintf(out, "Date:      %s\n", view.Plan.PlanDate)
	fmt.Fprintf(out, "Status:    %s\n", view.Plan.Status)
	fmt.Fprintf(out, "Reviewed:  %s\n", reviewed)
	fmt.Fprintf(out, "Awareness: %t\n", view.Plan.AwarenessAwarded)
	fmt.Fprintf(out, "Closure:   %t\n", view.Plan.ClosureAwarded)

	if len(view.Goals) == 0 {
		fmt.Fprintln(out, "\nNo goals.")
		return nil
	}
	fmt.Fprintln(out)
	tw := newTabWriter(out)
	fmt.Fprintln(tw, "#\tTITLE\tSTATUS\tPRIORITY\tREVIEWED")
	for _, g := range view.Goals {
		fmt.Fprintf(tw, "%d\t%s\t%s\tP%d\t%t\n", g.SortOrder+1, g.Title, g.Status, g.Priority, g.Reviewed())
	}
	return tw.Flush()
}

func runPlanReopen(cmd *cobra.Command, args []string) error {
	planID := args[0]
	ctx := context.Background()

	eng, err := resolveEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	plan, err := eng.ReopenPlan(ctx, reopenUser, planID, reopenActor, reopenReason)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, plan)
	}
	fmt.Fprintf(out, "Reopened plan %s (%s)\n", plan.ID, plan.PlanDate)
	return nil
}

func runPlanLock(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, err := resolveEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	today := eng.Today()
	if lockToday != "" {
		if today, err = dates.Parse(lockToday); err != nil {
			return err
		}
	}

	n, err := eng.LockStalePlans(ctx, today)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{
			"today":  today.String(),
			"locked": n,
		})
	}
	fmt.Fprintf(out, "Locked %d plan(s)\n", n)
	return nil
}
