package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/onboard/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status <onboarding-id>",
	Short: "Show an onboarding and its row counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]

	_, c, err := loadClient(cmd)
	if err != nil {
		return err
	}

	o, err := c.GetOnboarding(ctx, id)
	if err != nil {
		return fmt.Errorf("get onboarding: %w", err)
	}

	counts := make(map[types.Category]int, len(types.Categories()))
	for _, category := range types.Categories() {
		rows, err := c.ListChildren(ctx, category, id)
		if err != nil {
			return fmt.Errorf("list %s: %w", category, err)
		}
		counts[category] = len(rows)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"onboarding": o,
			"rows":       counts,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Onboarding: %s\n", o.ID)
	fmt.Fprintf(out, "Customer:   %s\n", o.CustomerID)
	fmt.Fprintf(out, "Type:       %s\n", o.OnboardingType)
	fmt.Fprintf(out, "Status:     %s\n", o.Status)
	fmt.Fprintf(out, "Updated:    %s\n", o.UpdatedAt.Format("2006-01-02 15:04:05"))
	if o.Notes != "" {
		fmt.Fprintf(out, "Notes:      %s\n", o.Notes)
	}
	fmt.Fprintln(out)

	w := newTabWriter(out)
	fmt.Fprintln(w, "CATEGORY\tROWS")
	for _, category := range types.Categories() {
		fmt.Fprintf(w, "%s\t%d\n", category, counts[category])
	}
	return w.Flush()
}
