package commands

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/genie-dash/genie/internal/printer"
	"github.com/genie-dash/genie/internal/resolver"
	"github.com/genie-dash/genie/internal/store"
	"github.com/genie-dash/genie/internal/watch"
)

var dashboardsID string

var dashboardsCmd = &cobra.Command{
	Use:   "dashboards",
	Short: "List stored dashboards or inspect one",
	Long: `Query the dashboard store for saved layouts.

Without flags, lists every stored dashboard. With --id, fetches one
dashboard and prints its widgets.

Examples:
  # List all dashboards
  genie dashboards

  # Inspect a specific dashboard (short ID prefixes work)
  genie dashboards --id layout-abc`,
	RunE: runDashboards,
}

func init() {
	dashboardsCmd.Flags().StringVar(&dashboardsID, "id", "", "Fetch a single dashboard by layout ID")
	rootCmd.AddCommand(dashboardsCmd)
}

func runDashboards(cmd *cobra.Command, args []string) error {
	url, err := storeURL()
	if err != nil {
		return err
	}

	client, err := store.NewClient(url)
	if err != nil {
		return printer.Error("store client failed", err.Error(), nil)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if dashboardsID != "" {
		return showDashboard(ctx, client, dashboardsID)
	}

	layouts, err := client.ListDashboards(ctx)
	if err != nil {
		return printer.Error(
			"failed to list dashboards",
			err.Error(),
			[]string{"Check that the dashboard store is reachable at GENIE_STORE_URL"},
		)
	}

	if len(layouts) == 0 {
		printer.Info("No stored dashboards.\n")
		return nil
	}

	for _, layout := range layouts {
		printer.Println(layout.Name)
		printer.Field("layout_id", layout.LayoutID)
		if layout.Description != "" {
			printer.Field("description", layout.Description)
		}
	}
	printer.Printf("%d dashboard(s)\n", len(layouts))
	return nil
}

func showDashboard(ctx context.Context, client *store.Client, id string) error {
	layoutID, err := resolver.ResolveLayoutID(ctx, client, id)
	if err != nil {
		var ambiguous *resolver.AmbiguousError
		if errors.As(err, &ambiguous) {
			return printer.Error(
				"ambiguous dashboard ID",
				resolver.FormatAmbiguousError(ambiguous),
				nil,
			)
		}
		if resolver.IsNotFoundError(err) {
			return printer.Error(
				"dashboard not found",
				"No stored dashboard matches "+id+".",
				[]string{"Run 'genie dashboards' to list available layouts"},
			)
		}
		return printer.Error("failed to resolve dashboard ID", err.Error(), nil)
	}

	snap, err := client.GetDashboard(ctx, layoutID)
	if err != nil {
		if store.IsNotFound(err) {
			return printer.Error(
				"dashboard not found",
				"No stored dashboard matches layout ID "+layoutID+".",
				[]string{"Run 'genie dashboards' to list available layouts"},
			)
		}
		return printer.Error("failed to fetch dashboard", err.Error(), nil)
	}

	printer.Println(snap.Layout.Name)
	printer.Field("layout_id", snap.Layout.LayoutID)
	if snap.Layout.Description != "" {
		printer.Field("description", snap.Layout.Description)
	}
	for _, w := range snap.Widgets {
		printer.Info("  %s\n", watch.DescribeWidget(w))
	}
	return nil
}
