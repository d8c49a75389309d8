package cli

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

func newRoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Room management commands",
	}

	cmd.AddCommand(newRoomCreateCmd())
	cmd.AddCommand(newRoomGetCmd())
	cmd.AddCommand(newRoomFindCmd())
	cmd.AddCommand(newRoomJoinCmd())
	cmd.AddCommand(newRoomStatusCmd())
	cmd.AddCommand(newRoomQRCmd())
	cmd.AddCommand(newRoomLeaveCmd())

	return cmd
}

func roomPath(roomID string) string {
	return "/api/v1/rooms/" + url.PathEscape(roomID)
}

// saveJoin remembers a created or joined room as the current session
func saveJoin(result JoinResult) error {
	return cfg.SaveSession(Session{
		RoomID: result.Room.ID,
		Code:   result.Room.Code,
		UserID: result.User.ID,
		Name:   result.User.Name,
	})
}

func newRoomCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a room and join it as host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result JoinResult
			if err := client.Post("/api/v1/rooms", map[string]string{"name": args[0]}, &result); err != nil {
				return err
			}
			if err := saveJoin(result); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newRoomGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [room_id]",
		Short: "Show a room and its roster (defaults to the current room)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := cfg.RoomID(args)
			if err != nil {
				return err
			}

			var result RoomDetail
			if err := client.Get(roomPath(roomID), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newRoomFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <code>",
		Short: "Look up a room by its join code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Room
			if err := client.Get("/api/v1/rooms?code="+url.QueryEscape(args[0]), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newRoomJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <code> <name>",
		Short: "Join a waiting room by its join code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"code": args[0], "name": args[1]}

			var result JoinResult
			if err := client.Post("/api/v1/rooms/join", body, &result); err != nil {
				return err
			}
			if err := saveJoin(result); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newRoomStatusCmd() *cobra.Command {
	var roomID string

	cmd := &cobra.Command{
		Use:   "status <waiting|active>",
		Short: "Change the current room's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cfg.RoomID([]string{roomID})
			if err != nil {
				return err
			}

			var result Room
			if err := client.Patch(roomPath(id)+"/status", map[string]string{"status": args[0]}, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&roomID, "room", "", "Room id (defaults to the current room)")

	return cmd
}

func newRoomQRCmd() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "qr [room_id]",
		Short: "Fetch the join QR code for a room",
		Long: `Fetch the join QR code for a room and print the link it encodes.
With --out the PNG image is written to the given file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := cfg.RoomID(args)
			if err != nil {
				return err
			}

			png, header, err := client.GetRaw(roomPath(roomID) + "/qr")
			if err != nil {
				return err
			}

			if outFile != "" {
				if err := os.WriteFile(outFile, png, 0644); err != nil {
					return fmt.Errorf("failed to write QR code: %w", err)
				}
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.PrintMessage(header.Get("X-Join-URL"))
			return nil
		},
	}

	cmd.Flags().StringVar(&outFile, "out", "", "Write the PNG image to this file")

	return cmd
}

func newRoomLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Forget the current room locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ClearSession(); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage("Left room")
			return nil
		},
	}
}
