package cli

import (
	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the round as host and deal tasks",
		Long: `Start the round in the current room. Only the host can start, and
every player must be ready. Tasks are dealt once; repeating the command
reports that they were already dealt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := cfg.RoomID(nil)
			if err != nil {
				return err
			}
			userID, err := cfg.UserID("")
			if err != nil {
				return err
			}

			var result Assignment
			if err := client.Post(roomPath(roomID)+"/round", map[string]string{"user_id": userID}, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign [room_id]",
		Short: "Deal tasks without the host and readiness checks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := cfg.RoomID(args)
			if err != nil {
				return err
			}

			var result Assignment
			if err := client.Post(roomPath(roomID)+"/assignments", nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the task template catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Templates
			if err := client.Get("/api/v1/templates", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
