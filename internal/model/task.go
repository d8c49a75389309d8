package model

import (
	"regexp"
	"strconv"
	"strings"
)

// TasksPerUser is the number of tasks each user receives per round
const TasksPerUser = 3

// TaskID identifies a task template, in the form task-<digits>
type TaskID string

var taskIDPattern = regexp.MustCompile(`^task-\d+$`)

// IsValidTaskIDFormat reports whether id matches task-<digits>
func IsValidTaskIDFormat(id TaskID) bool {
	return taskIDPattern.MatchString(string(id))
}

// TaskTemplate is a catalog entry describing a generic social action
type TaskTemplate struct {
	ID   TaskID `json:"-"`
	Text string `json:"text"`
}

// Less orders templates by numeric suffix, falling back to string order
// for ids that don't parse.
func (t *TaskTemplate) Less(other *TaskTemplate) bool {
	a, aErr := strconv.Atoi(strings.TrimPrefix(string(t.ID), "task-"))
	b, bErr := strconv.Atoi(strings.TrimPrefix(string(other.ID), "task-"))
	switch {
	case aErr == nil && bErr == nil && a != b:
		return a < b
	case aErr == nil && bErr != nil:
		return true
	case aErr != nil && bErr == nil:
		return false
	}
	return t.ID < other.ID
}

// TaskAssignment binds a template to a target user for one owner.
// Text and target name are copied at assignment time.
type TaskAssignment struct {
	TaskID       TaskID `json:"taskId"`
	TaskText     string `json:"taskText"`
	TargetUserID UserID `json:"targetUserId"`
	TargetName   string `json:"targetName"`
}
