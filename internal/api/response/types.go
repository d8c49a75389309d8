package response

import (
	"time"

	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/services/assignment"
	"github.com/mcoot/partytasks/internal/services/membership"
)

// Room represents a room in API responses
type Room struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	AssignedTasks []string  `json:"assigned_tasks,omitempty"`
}

// RoomFromModel converts a model.Room to a response Room
func RoomFromModel(r *model.Room) Room {
	resp := Room{
		ID:        string(r.ID),
		Code:      string(r.Code),
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
	}
	for _, id := range r.AssignedTasks {
		resp.AssignedTasks = append(resp.AssignedTasks, string(id))
	}
	return resp
}

// User represents a room member. Tasks are only listed by the tasks endpoint.
type User struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	IsHost   bool      `json:"is_host"`
	Ready    bool      `json:"ready"`
	JoinedAt time.Time `json:"joined_at"`
	HasTasks bool      `json:"has_tasks"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User) User {
	return User{
		ID:       string(u.ID),
		Name:     u.Name,
		Role:     string(u.Role),
		IsHost:   u.IsHost(),
		Ready:    u.Ready,
		JoinedAt: u.JoinedAt,
		HasTasks: u.HasTasks(),
	}
}

// UsersFromModel converts a roster, keeping its order
func UsersFromModel(users []*model.User) []User {
	resp := make([]User, 0, len(users))
	for _, u := range users {
		resp = append(resp, UserFromModel(u))
	}
	return resp
}

// Roster is a room's membership with its aggregate readiness
type Roster struct {
	Users    []User `json:"users"`
	AllReady bool   `json:"all_ready"`
}

// RosterFromModel builds a Roster from the room's users
func RosterFromModel(users []*model.User) Roster {
	return Roster{
		Users:    UsersFromModel(users),
		AllReady: membership.ComputeReadiness(users),
	}
}

// RoomDetail is a room with its roster
type RoomDetail struct {
	Room
	Roster
}

// RoomDetailFromModel combines a room and its users
func RoomDetailFromModel(r *model.Room, users []*model.User) RoomDetail {
	return RoomDetail{
		Room:   RoomFromModel(r),
		Roster: RosterFromModel(users),
	}
}

// JoinResponse is returned when a user creates or joins a room
type JoinResponse struct {
	Room Room `json:"room"`
	User User `json:"user"`
}

// Task is one of a user's assignments
type Task struct {
	TaskID       string `json:"task_id"`
	TaskText     string `json:"task_text"`
	TargetUserID string `json:"target_user_id"`
	TargetName   string `json:"target_name"`
}

// TasksFromModel converts a user's assignments
func TasksFromModel(tasks []model.TaskAssignment) []Task {
	resp := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, Task{
			TaskID:       string(t.TaskID),
			TaskText:     t.TaskText,
			TargetUserID: string(t.TargetUserID),
			TargetName:   t.TargetName,
		})
	}
	return resp
}

// UserTasks lists one user's assignments
type UserTasks struct {
	UserID string `json:"user_id"`
	Tasks  []Task `json:"tasks"`
}

// Assignment reports the outcome of dealing tasks
type Assignment struct {
	Outcome string   `json:"outcome"`
	TaskIDs []string `json:"task_ids,omitempty"`
}

// AssignmentFromResult converts an engine result
func AssignmentFromResult(r *assignment.Result) Assignment {
	resp := Assignment{Outcome: string(r.Outcome)}
	if r.Plan != nil {
		for _, id := range r.Plan.TaskIDs {
			resp.TaskIDs = append(resp.TaskIDs, string(id))
		}
	}
	return resp
}

// Template is a task catalog entry
type Template struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Valid bool   `json:"valid"`
}

// Templates lists the task catalog
type Templates struct {
	Templates []Template `json:"templates"`
}

// TemplatesFromModel converts the catalog, flagging malformed ids
func TemplatesFromModel(templates []*model.TaskTemplate) Templates {
	resp := Templates{Templates: make([]Template, 0, len(templates))}
	for _, t := range templates {
		resp.Templates = append(resp.Templates, Template{
			ID:    string(t.ID),
			Text:  t.Text,
			Valid: model.IsValidTaskIDFormat(t.ID),
		})
	}
	return resp
}

// Health is the health check response
type Health struct {
	Status string `json:"status"`
}
