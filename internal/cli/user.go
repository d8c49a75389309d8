package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func userPath(roomID, userID string) string {
	return roomPath(roomID) + "/users/" + url.PathEscape(userID)
}

func newReadyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ready [true|false]",
		Short: "Set the current user's ready flag (defaults to true)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ready := true
			if len(args) > 0 {
				v, err := strconv.ParseBool(args[0])
				if err != nil {
					return fmt.Errorf("invalid ready value %q", args[0])
				}
				ready = v
			}

			roomID, err := cfg.RoomID(nil)
			if err != nil {
				return err
			}
			userID, err := cfg.UserID("")
			if err != nil {
				return err
			}

			var result Roster
			if err := client.Patch(userPath(roomID, userID)+"/ready", map[string]bool{"ready": ready}, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	return cmd
}

func newTasksCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Show the tasks dealt to the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := cfg.RoomID(nil)
			if err != nil {
				return err
			}
			id, err := cfg.UserID(userID)
			if err != nil {
				return err
			}

			var result UserTasks
			if err := client.Get(userPath(roomID, id)+"/tasks", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id (defaults to the current user)")

	return cmd
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current room and user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(cfg.Session)
			return nil
		},
	}
}
