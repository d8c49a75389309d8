package model

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidRoomCode(t *testing.T) {
	tests := []struct {
		code  RoomCode
		valid bool
	}{
		{"AB12", true},
		{"ZZZZ", true},
		{"0000", true},
		{"ab12", false},
		{"AB1", false},
		{"AB123", false},
		{"AB-1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidRoomCode(tt.code))
		})
	}
}

func TestIsValidTaskIDFormat(t *testing.T) {
	assert.True(t, IsValidTaskIDFormat("task-1"))
	assert.True(t, IsValidTaskIDFormat("task-042"))
	assert.False(t, IsValidTaskIDFormat("task-"))
	assert.False(t, IsValidTaskIDFormat("task-1a"))
	assert.False(t, IsValidTaskIDFormat("Task-1"))
	assert.False(t, IsValidTaskIDFormat("hug-someone"))
}

func TestTaskTemplate_Less(t *testing.T) {
	templates := []*TaskTemplate{
		{ID: "task-10"}, {ID: "zzz"}, {ID: "task-2"}, {ID: "abc"}, {ID: "task-1"},
	}
	slices.SortFunc(templates, func(a, b *TaskTemplate) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})

	var ids []TaskID
	for _, tmpl := range templates {
		ids = append(ids, tmpl.ID)
	}
	assert.Equal(t, []TaskID{"task-1", "task-2", "task-10", "abc", "zzz"}, ids)
}

func TestRoom_Validate(t *testing.T) {
	valid := Room{ID: "r1", Code: "AB12", Status: RoomStatusWaiting}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		edit func(*Room)
	}{
		{"no id", func(r *Room) { r.ID = "" }},
		{"bad code", func(r *Room) { r.Code = "ab" }},
		{"bad status", func(r *Room) { r.Status = "finished" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.edit(&r)
			assert.True(t, errors.Is(r.Validate(), ErrMalformedDocument))
		})
	}
}

func TestUser_Validate(t *testing.T) {
	u := User{ID: "u1", Name: "Alice", Role: RoleHost}
	require.NoError(t, u.Validate())
	assert.True(t, u.IsHost())
	assert.False(t, u.HasTasks())

	u.Role = "spectator"
	assert.ErrorIs(t, u.Validate(), ErrMalformedDocument)

	u.Role = RolePlayer
	u.Tasks = []TaskAssignment{{TaskID: "task-1"}}
	assert.ErrorIs(t, u.Validate(), ErrMalformedDocument)
}

func TestClone_IsDeep(t *testing.T) {
	r := &Room{ID: "r1", AssignedTasks: []TaskID{"task-1"}}
	rc := r.Clone()
	rc.AssignedTasks[0] = "task-9"
	assert.Equal(t, TaskID("task-1"), r.AssignedTasks[0])

	u := &User{ID: "u1", Tasks: []TaskAssignment{{TaskID: "task-1", TargetUserID: "u2"}}}
	uc := u.Clone()
	uc.Tasks[0].TaskID = "task-9"
	assert.Equal(t, TaskID("task-1"), u.Tasks[0].TaskID)
}
