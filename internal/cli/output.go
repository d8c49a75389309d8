package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Room:
		o.printRoom(v)
	case RoomDetail:
		o.printRoom(v.Room)
		o.printRoster(v.Roster)
	case Roster:
		o.printRoster(v)
	case User:
		o.printUser(v)
	case JoinResult:
		o.printRoom(v.Room)
		_, _ = fmt.Fprint(o.w, "You: ")
		o.printUser(v.User)
	case UserTasks:
		o.printUserTasks(v)
	case Assignment:
		o.printAssignment(v)
	case Templates:
		o.printTemplates(v)
	case Session:
		o.printSession(v)
	case HealthResult:
		_, _ = fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Room response type (matches API)
type Room struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	AssignedTasks []string  `json:"assigned_tasks,omitempty"`
}

// User response type
type User struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	IsHost   bool      `json:"is_host"`
	Ready    bool      `json:"ready"`
	JoinedAt time.Time `json:"joined_at"`
	HasTasks bool      `json:"has_tasks"`
}

// Roster response type
type Roster struct {
	Users    []User `json:"users"`
	AllReady bool   `json:"all_ready"`
}

// RoomDetail is a room with its roster
type RoomDetail struct {
	Room
	Roster
}

// JoinResult is returned by create and join
type JoinResult struct {
	Room Room `json:"room"`
	User User `json:"user"`
}

// Task response type
type Task struct {
	TaskID       string `json:"task_id"`
	TaskText     string `json:"task_text"`
	TargetUserID string `json:"target_user_id"`
	TargetName   string `json:"target_name"`
}

// UserTasks response type
type UserTasks struct {
	UserID string `json:"user_id"`
	Tasks  []Task `json:"tasks"`
}

// Assignment response type
type Assignment struct {
	Outcome string   `json:"outcome"`
	TaskIDs []string `json:"task_ids,omitempty"`
}

// Template response type
type Template struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Valid bool   `json:"valid"`
}

// Templates response type
type Templates struct {
	Templates []Template `json:"templates"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printRoom(r Room) {
	_, _ = fmt.Fprintf(o.w, "Room: %s (%s)\n", r.Code, r.ID)
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", r.Status)
	if len(r.AssignedTasks) > 0 {
		_, _ = fmt.Fprintf(o.w, "Tasks in play: %d\n", len(r.AssignedTasks))
	}
}

func (o *Output) printRoster(r Roster) {
	_, _ = fmt.Fprintf(o.w, "Users (%d):\n", len(r.Users))
	for _, u := range r.Users {
		_, _ = fmt.Fprint(o.w, "  - ")
		o.printUser(u)
	}
	if r.AllReady {
		_, _ = fmt.Fprintln(o.w, "Everyone is ready")
	}
}

func (o *Output) printUser(u User) {
	flags := ""
	if u.IsHost {
		flags += " [host]"
	}
	if u.Ready {
		flags += " [ready]"
	}
	_, _ = fmt.Fprintf(o.w, "%s (%s)%s\n", u.Name, u.ID, flags)
}

func (o *Output) printUserTasks(t UserTasks) {
	if len(t.Tasks) == 0 {
		_, _ = fmt.Fprintln(o.w, "No tasks yet")
		return
	}
	_, _ = fmt.Fprintf(o.w, "Tasks (%d):\n", len(t.Tasks))
	for _, task := range t.Tasks {
		_, _ = fmt.Fprintf(o.w, "  %s: %s\n", task.TaskID, task.TaskText)
	}
}

func (o *Output) printAssignment(a Assignment) {
	switch a.Outcome {
	case "assigned":
		_, _ = fmt.Fprintf(o.w, "Tasks dealt: %d\n", len(a.TaskIDs))
	case "in_progress":
		_, _ = fmt.Fprintln(o.w, "Assignment already in progress")
	case "already_assigned":
		_, _ = fmt.Fprintln(o.w, "Tasks were already dealt")
	default:
		_, _ = fmt.Fprintf(o.w, "Outcome: %s\n", a.Outcome)
	}
}

func (o *Output) printTemplates(t Templates) {
	_, _ = fmt.Fprintf(o.w, "Templates (%d):\n", len(t.Templates))
	for _, tmpl := range t.Templates {
		mark := ""
		if !tmpl.Valid {
			mark = " [invalid id]"
		}
		_, _ = fmt.Fprintf(o.w, "  %s: %s%s\n", tmpl.ID, tmpl.Text, mark)
	}
}

func (o *Output) printSession(s Session) {
	if s.RoomID == "" {
		_, _ = fmt.Fprintln(o.w, "Not in a room")
		return
	}
	_, _ = fmt.Fprintf(o.w, "Room: %s (%s)\n", s.Code, s.RoomID)
	_, _ = fmt.Fprintf(o.w, "User: %s (%s)\n", s.Name, s.UserID)
}
