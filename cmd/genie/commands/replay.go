package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/genie-dash/genie/internal/printer"
	"github.com/genie-dash/genie/pkg/toolstream"
)

var replayDelay time.Duration

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Replay a captured event stream into a session",
	Long: `Publish tool-call envelopes from a JSONL capture file onto a
session's event stream, one line per envelope. Useful for reproducing a
chat session against a fresh daemon.

Blank lines are skipped; a malformed line aborts the replay with its
line number.

Examples:
  # Replay a capture at full speed
  genie replay session.jsonl --session demo

  # Replay with 100ms between events
  genie replay session.jsonl --session demo --delay 100ms`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().DurationVar(&replayDelay, "delay", 0, "Pause between published envelopes")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return printer.Error(
			"cannot open capture file",
			err.Error(),
			[]string{"Pass the path to a JSONL file of tool-call envelopes"},
		)
	}
	defer file.Close()

	client, err := streamClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		return printer.Error(
			"Redis not accessible",
			err.Error(),
			[]string{"Check that Redis is running and REDIS_URL is correct"},
		)
	}

	printer.Step("Replaying %s into session '%s'\n", args[0], client.SessionName())

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	published := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var env toolstream.Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return printer.Error(
				"malformed capture line",
				fmt.Sprintf("Line %d is not a valid envelope: %v", lineNo, err),
				nil,
			)
		}

		if err := client.Publish(ctx, &env); err != nil {
			return printer.Error(
				"publish failed",
				fmt.Sprintf("Line %d: %v", lineNo, err),
				nil,
			)
		}
		published++

		if replayDelay > 0 {
			time.Sleep(replayDelay)
		}
	}
	if err := scanner.Err(); err != nil {
		return printer.Error("read failed", err.Error(), nil)
	}

	printer.Success("Replayed %d envelope(s) to session '%s'\n", published, client.SessionName())
	return nil
}
