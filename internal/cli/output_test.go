package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutput_Text(t *testing.T) {
	tests := []struct {
		name     string
		data     any
		contains []string
	}{
		{
			name: "room detail",
			data: RoomDetail{
				Room: Room{ID: "room-1", Code: "AB12", Status: "waiting"},
				Roster: Roster{
					Users: []User{
						{ID: "u1", Name: "Alice", IsHost: true, Ready: true},
						{ID: "u2", Name: "Bob"},
					},
					AllReady: false,
				},
			},
			contains: []string{"Room: AB12 (room-1)", "Status: waiting", "Users (2):", "Alice (u1) [host] [ready]", "Bob (u2)\n"},
		},
		{
			name:     "assigned",
			data:     Assignment{Outcome: "assigned", TaskIDs: []string{"task-1", "task-2"}},
			contains: []string{"Tasks dealt: 2"},
		},
		{
			name:     "already assigned",
			data:     Assignment{Outcome: "already_assigned"},
			contains: []string{"already dealt"},
		},
		{
			name:     "no tasks",
			data:     UserTasks{UserID: "u1"},
			contains: []string{"No tasks yet"},
		},
		{
			name: "tasks",
			data: UserTasks{UserID: "u1", Tasks: []Task{
				{TaskID: "task-3", TaskText: "Make someone laugh", TargetName: "Bob"},
			}},
			contains: []string{"Tasks (1):", "task-3: Make someone laugh"},
		},
		{
			name:     "invalid template",
			data:     Templates{Templates: []Template{{ID: "bad", Text: "x", Valid: false}}},
			contains: []string{"bad: x [invalid id]"},
		},
		{
			name:     "empty session",
			data:     Session{},
			contains: []string{"Not in a room"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewOutput("text", &buf).Print(tt.data)
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput("json", &buf)

	out.Print(Assignment{Outcome: "in_progress"})
	var a Assignment
	require.NoError(t, json.Unmarshal(buf.Bytes(), &a))
	assert.Equal(t, "in_progress", a.Outcome)

	buf.Reset()
	out.PrintMessage("hello")
	var m map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "hello", m["message"])
}
