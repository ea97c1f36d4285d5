package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/genie-dash/genie/internal/filter"
	"github.com/genie-dash/genie/internal/printer"
	"github.com/genie-dash/genie/internal/watch"
	"github.com/genie-dash/genie/pkg/toolstream"
)

var (
	watchRaw    bool
	watchTool   string
	watchWidget string
	watchKind   string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail the session's tool-call event stream",
	Long: `Subscribe to a session's tool-call event stream and print each
dashboard-affecting event as it arrives. Events the classifier does not
recognize are skipped unless --raw is set.

Examples:
  # Watch the session from the environment
  genie watch

  # Watch a specific session, including unclassified envelopes
  genie watch --session demo --raw

  # Only manipulation events for one widget
  genie watch --tool "manipulate_*" --widget widget-1

  # Only completed manipulations
  genie watch --kind manipulation_result`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchRaw, "raw", false, "Also print envelopes that do not classify to an event")
	watchCmd.Flags().StringVar(&watchTool, "tool", "", "Filter by tool name (glob pattern)")
	watchCmd.Flags().StringVar(&watchWidget, "widget", "", "Filter manipulation events by widget ID")
	watchCmd.Flags().StringVar(&watchKind, "kind", "", "Filter by event kind (dashboard_created, widget_added, manipulation_intent, manipulation_result)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchKind != "" {
		if err := toolstream.Kind(watchKind).Validate(); err != nil {
			return printer.Error(
				"invalid --kind value",
				err.Error(),
				[]string{"Valid kinds: dashboard_created, widget_added, manipulation_intent, manipulation_result"},
			)
		}
	}

	client, err := streamClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		return printer.Error(
			"Redis not accessible",
			err.Error(),
			[]string{"Check that Redis is running and REDIS_URL is correct"},
		)
	}

	sub, err := client.Subscribe(ctx)
	if err != nil {
		return printer.Error("subscription failed", err.Error(), nil)
	}
	defer sub.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	criteria := &filter.Criteria{ToolGlob: watchTool, WidgetID: watchWidget, Kind: watchKind}

	printer.Info("Watching session '%s' (Ctrl+C to stop)\n", client.SessionName())

	for {
		select {
		case <-sigCh:
			printer.Println("\nStopped.")
			return nil

		case env, ok := <-sub.Events():
			if !ok {
				return nil
			}
			tag := time.Now().Format("15:04:05")
			if event, ok := toolstream.Classify(env); ok {
				if criteria.Matches(event) {
					printer.Event(tag, "%s", watch.Describe(event))
				}
			} else if watchRaw && !criteria.HasFilters() {
				printer.Event(tag, "unclassified envelope (event=%q)", env.Event)
			}

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("stream error: %v\n", err)
		}
	}
}
