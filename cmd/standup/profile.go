package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect user profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a user's display name and points",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, err := resolveEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	profile, err := eng.Profile(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, profile)
	}

	name := "(not set)"
	if profile.DisplayName != nil {
		name = *profile.DisplayName
	}
	fmt.Fprintf(out, "User:    %s\n", profile.ID)
	fmt.Fprintf(out, "Name:    %s\n", name)
	fmt.Fprintf(out, "Points:  %d\n", profile.Points)
	fmt.Fprintf(out, "Created: %s\n", profile.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
