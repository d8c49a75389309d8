package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "events [room_id]",
		Short: "Stream SSE events from a room",
		Long: `Connect to the room's SSE endpoint and stream events in real-time.
Defaults to the current room.

Events include:
  - connected: Stream opened
  - roster: Room members or readiness changed (JSON)
  - roster-html: The same roster as an HTML fragment
  - status: Room status changed (JSON)
  - round-started: The room became active and tasks were dealt

Press Ctrl+C to disconnect.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := cfg.RoomID(args)
			if err != nil {
				return err
			}
			return streamEvents(cmd.Context(), cmd.OutOrStdout(), roomID, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")

	return cmd
}

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

func streamEvents(parent context.Context, out io.Writer, roomID string, jsonOutput bool) error {
	// SSE is on the web router, not the API router
	streamURL := strings.TrimSuffix(cfg.ServerURL, "/") + "/rooms/" + url.PathEscape(roomID) + "/events"
	if cfg.Session.RoomID == roomID && cfg.Session.UserID != "" {
		streamURL += "?user_id=" + url.QueryEscape(cfg.Session.UserID)
	}

	// Create request
	req, err := http.NewRequest(http.MethodGet, streamURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Handle interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	req = req.WithContext(ctx)

	// Make request
	httpClient := &http.Client{
		Timeout: 0, // No timeout for SSE
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if !jsonOutput {
		_, _ = fmt.Fprintf(out, "Connected to room %s\n", roomID)
	}

	err = readEvents(resp.Body, func(event, data string) {
		printEvent(out, event, data, jsonOutput)
	})
	if err != nil {
		// Context cancellation is expected
		if ctx.Err() != nil {
			if !jsonOutput {
				_, _ = fmt.Fprintln(out, "\nDisconnected")
			}
			return nil
		}
		return fmt.Errorf("stream error: %w", err)
	}

	if !jsonOutput {
		_, _ = fmt.Fprintln(out, "Disconnected")
	}
	return nil
}

// readEvents parses an SSE stream, calling fn once per complete event.
// Multi-line data is rejoined with newlines.
func readEvents(r io.Reader, fn func(event, data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			if currentEvent != "" {
				fn(currentEvent, strings.Join(dataLines, "\n"))
			}
			currentEvent = ""
			dataLines = nil
		}
	}
	return scanner.Err()
}

func printEvent(w io.Writer, event, data string, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		evt := SSEEvent{
			Time:  now,
			Event: event,
			Data:  data,
		}
		jsonData, _ := json.Marshal(evt)
		_, _ = fmt.Fprintln(w, string(jsonData))
		return
	}

	timestamp := now.Format("2006-01-02 15:04:05")
	_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", timestamp, event, describeEvent(event, data))
}

// describeEvent summarises a known event for text output
func describeEvent(event, data string) string {
	switch event {
	case "roster":
		var roster Roster
		if err := json.Unmarshal([]byte(data), &roster); err == nil {
			names := make([]string, 0, len(roster.Users))
			for _, u := range roster.Users {
				name := u.Name
				if u.Ready {
					name += " (ready)"
				}
				names = append(names, name)
			}
			summary := strings.Join(names, ", ")
			if roster.AllReady {
				summary += "; everyone is ready"
			}
			return summary
		}
	case "status":
		var room Room
		if err := json.Unmarshal([]byte(data), &room); err == nil {
			return fmt.Sprintf("room %s is %s", room.Code, room.Status)
		}
	case "round-started":
		return "the round has started, check your tasks"
	}

	// Truncate data if it's too long for display
	display := strings.ReplaceAll(data, "\n", " ")
	if len(display) > 100 {
		display = display[:100] + "..."
	}
	return display
}
