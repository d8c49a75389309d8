package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds CLI configuration
type Config struct {
	ServerURL   string
	SessionFile string
	Output      string
	Verbose     bool

	Session Session
}

// Session remembers the room and user this CLI last created or joined
type Session struct {
	RoomID string `json:"room_id"`
	Code   string `json:"code"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:   getEnvOrDefault("PARTYTASKS_SERVER", "http://localhost:8080"),
		SessionFile: getEnvOrDefault("PARTYTASKS_SESSION_FILE", defaultSessionFile()),
		Output:      "text",
		Verbose:     false,
	}
}

// LoadSession loads the session from file if one exists
func (c *Config) LoadSession() error {
	data, err := os.ReadFile(c.SessionFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No session file is fine
		}
		return err
	}

	if err := json.Unmarshal(data, &c.Session); err != nil {
		return fmt.Errorf("session file %s is corrupt: %w", c.SessionFile, err)
	}
	return nil
}

// SaveSession saves the session to the session file
func (c *Config) SaveSession(s Session) error {
	c.Session = s

	dir := filepath.Dir(c.SessionFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.SessionFile, data, 0600)
}

// ClearSession forgets the current room
func (c *Config) ClearSession() error {
	c.Session = Session{}
	if err := os.Remove(c.SessionFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RoomID returns the explicit room id, or the session's one
func (c *Config) RoomID(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if c.Session.RoomID == "" {
		return "", errors.New("no room given and no current room; create or join one first")
	}
	return c.Session.RoomID, nil
}

// UserID returns the explicit user id, or the session's one
func (c *Config) UserID(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if c.Session.UserID == "" {
		return "", errors.New("no user given and no current user; create or join a room first")
	}
	return c.Session.UserID, nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".partytasks/session.json"
	}
	return filepath.Join(home, ".partytasks", "session.json")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
