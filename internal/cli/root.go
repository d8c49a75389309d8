package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "partytasks",
		Short: "CLI tool for the party tasks API",
		Long: `partytasks is a CLI tool for interacting with the party tasks JSON API.

It can create and join rooms, toggle readiness, start a round, show dealt
tasks and stream live room events. The room and user from the last create
or join are remembered in the session file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.LoadSession(); err != nil {
				return err
			}
			client = NewClient(cfg.ServerURL)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: PARTYTASKS_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.SessionFile, "session-file", cfg.SessionFile, "Session file path (env: PARTYTASKS_SESSION_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	rootCmd.AddCommand(newRoomCmd())
	rootCmd.AddCommand(newReadyCmd())
	rootCmd.AddCommand(newTasksCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newAssignCmd())
	rootCmd.AddCommand(newTemplatesCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
