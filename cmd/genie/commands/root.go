package commands

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/genie-dash/genie/internal/printer"
	"github.com/genie-dash/genie/pkg/toolstream"
)

var (
	version string
	commit  string
	date    string
)

// Global flags shared by commands that talk to the event stream.
var (
	sessionName string
	redisURL    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "genie",
	Short: "Genie - AI-driven dashboard session tooling",
	Long: `Genie keeps a live dashboard in sync with an AI chat session.

The session daemon (genied) folds the chat's tool-call events into
dashboard state; this CLI inspects stored dashboards, tails the event
stream, and replays captured streams for debugging.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, show help
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionName, "session", "", "Session name (defaults to GENIE_SESSION_NAME)")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", "", "Redis URL (defaults to REDIS_URL)")
}

// streamClient resolves connection settings from flags and environment and
// returns a connected tool-call stream client. Callers own Close.
func streamClient() (*toolstream.Client, error) {
	session := sessionName
	if session == "" {
		session = os.Getenv("GENIE_SESSION_NAME")
	}
	if session == "" {
		return nil, printer.Error(
			"no session specified",
			"A session name is required to address the event stream.",
			[]string{
				"Pass --session <name>",
				"Set GENIE_SESSION_NAME in the environment",
			},
		)
	}

	url := redisURL
	if url == "" {
		url = os.Getenv("REDIS_URL")
	}
	if url == "" {
		url = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, printer.Error(
			"invalid Redis URL",
			fmt.Sprintf("Could not parse %q: %v", url, err),
			[]string{"Use the form redis://host:port/db"},
		)
	}

	return toolstream.NewClient(opts, session)
}

// storeURL resolves the dashboard store endpoint from the environment.
func storeURL() (string, error) {
	url := os.Getenv("GENIE_STORE_URL")
	if url == "" {
		return "", printer.Error(
			"no dashboard store configured",
			"The dashboard store endpoint is required for this command.",
			[]string{"Set GENIE_STORE_URL to the store's MCP endpoint"},
		)
	}
	return url, nil
}
