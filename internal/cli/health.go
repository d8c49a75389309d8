package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Long: `Check server health. With --wait the check is retried until the
server answers or the duration elapses, which suits startup scripts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HealthResult

			deadline := time.Now().Add(wait)
			for {
				err := client.Get("/api/v1/health", &result)
				if err == nil {
					break
				}
				if !time.Now().Before(deadline) {
					return err
				}
				if cfg.Verbose {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "waiting for server: %s\n", err)
				}
				time.Sleep(250 * time.Millisecond)
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "Keep retrying for up to this long")

	return cmd
}
