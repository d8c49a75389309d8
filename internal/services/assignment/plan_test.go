package assignment

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/partytasks/internal/dependencies/mocks"
	"github.com/mcoot/partytasks/internal/dependencies/random"
	"github.com/mcoot/partytasks/internal/model"
)

func makeUsers(n int) []*model.User {
	users := make([]*model.User, n)
	for i := range users {
		role := model.RolePlayer
		if i == 0 {
			role = model.RoleHost
		}
		users[i] = &model.User{
			ID:   model.UserID(fmt.Sprintf("user-%d", i+1)),
			Name: fmt.Sprintf("Player %d", i+1),
			Role: role,
		}
	}
	return users
}

func makeTemplates(n int) []*model.TaskTemplate {
	templates := make([]*model.TaskTemplate, n)
	for i := range templates {
		templates[i] = &model.TaskTemplate{
			ID:   model.TaskID(fmt.Sprintf("task-%d", i+1)),
			Text: fmt.Sprintf("Do thing number %d", i+1),
		}
	}
	return templates
}

func assertValidPlan(t *testing.T, users []*model.User, plan *Plan) {
	t.Helper()
	seen := make(map[model.TaskID]bool)
	names := make(map[model.UserID]string)
	for _, u := range users {
		names[u.ID] = u.Name
	}

	for _, u := range users {
		tasks := plan.Tasks[u.ID]
		require.Len(t, tasks, model.TasksPerUser, "user %s", u.ID)
		for _, task := range tasks {
			assert.NotEqual(t, u.ID, task.TargetUserID, "user %s targets themselves", u.ID)
			assert.False(t, seen[task.TaskID], "template %s used twice", task.TaskID)
			assert.Equal(t, names[task.TargetUserID], task.TargetName)
			seen[task.TaskID] = true
		}
	}
	assert.Len(t, plan.TaskIDs, len(users)*model.TasksPerUser)
}

func targetSpread(plan *Plan) int {
	lo, hi := -1, -1
	for _, c := range plan.TargetCounts {
		if lo < 0 || c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}
	return hi - lo
}

func TestBuildPlanProperties(t *testing.T) {
	rnd := random.New()
	for n := MinPlayers; n <= 12; n++ {
		t.Run(fmt.Sprintf("%d users", n), func(t *testing.T) {
			users := makeUsers(n)
			for trial := 0; trial < 50; trial++ {
				plan, err := BuildPlan(users, makeTemplates(n*model.TasksPerUser+trial%5), rnd)
				require.NoError(t, err)
				assertValidPlan(t, users, plan)
			}
		})
	}
}

func TestBuildPlanTargetBalance(t *testing.T) {
	rnd := random.New()
	for n := 3; n <= 10; n++ {
		t.Run(fmt.Sprintf("%d users", n), func(t *testing.T) {
			users := makeUsers(n)
			for trial := 0; trial < 100; trial++ {
				plan, err := BuildPlan(users, makeTemplates(n*model.TasksPerUser*2), rnd)
				require.NoError(t, err)
				assert.LessOrEqual(t, targetSpread(plan), 1)
				for _, c := range plan.TargetCounts {
					assert.Equal(t, model.TasksPerUser, c)
				}
			}
		})
	}
}

func TestBuildPlanTwoUsersTargetEachOther(t *testing.T) {
	users := makeUsers(2)
	plan, err := BuildPlan(users, makeTemplates(6), mocks.NewMockRandom())
	require.NoError(t, err)

	for _, task := range plan.Tasks["user-1"] {
		assert.Equal(t, model.UserID("user-2"), task.TargetUserID)
	}
	for _, task := range plan.Tasks["user-2"] {
		assert.Equal(t, model.UserID("user-1"), task.TargetUserID)
	}
}

func TestBuildPlanDealsRoundRobin(t *testing.T) {
	// MockRandom returns 0 for every draw, so the shuffle leaves the pool
	// rotated predictably and ties go to the first candidate
	users := makeUsers(3)
	plan, err := BuildPlan(users, makeTemplates(9), mocks.NewMockRandom())
	require.NoError(t, err)

	assert.Equal(t, []model.UserID{"user-1", "user-2", "user-3"}, plan.Order)
	require.Len(t, plan.TaskIDs, 9)
	// The first three picks go one each to users 1, 2 and 3
	assert.Equal(t, plan.TaskIDs[0], plan.Tasks["user-1"][0].TaskID)
	assert.Equal(t, plan.TaskIDs[1], plan.Tasks["user-2"][0].TaskID)
	assert.Equal(t, plan.TaskIDs[2], plan.Tasks["user-3"][0].TaskID)
}

func TestBuildPlanUsesShuffleOrder(t *testing.T) {
	// With all-zero draws Fisher-Yates moves the first element to the back
	// on each step, giving task-2, task-3, ..., task-6, task-1
	plan, err := BuildPlan(makeUsers(2), makeTemplates(6), mocks.NewMockRandom())
	require.NoError(t, err)
	assert.Equal(t, []model.TaskID{"task-2", "task-3", "task-4", "task-5", "task-6", "task-1"}, plan.TaskIDs)
}

func TestBuildPlanTrimsCopiedText(t *testing.T) {
	users := makeUsers(2)
	users[1].Name = "  Bob  "
	templates := makeTemplates(6)
	for _, tmpl := range templates {
		tmpl.Text = "  " + tmpl.Text + "\n"
	}

	plan, err := BuildPlan(users, templates, mocks.NewMockRandom())
	require.NoError(t, err)
	for _, task := range plan.Tasks["user-1"] {
		assert.Equal(t, "Bob", task.TargetName)
		assert.NotContains(t, task.TaskText, "\n")
		assert.NotEqual(t, byte(' '), task.TaskText[0])
	}
}

func TestBuildPlanErrors(t *testing.T) {
	tests := []struct {
		name      string
		users     []*model.User
		templates func() []*model.TaskTemplate
		wantErr   error
	}{
		{
			name:      "no users",
			users:     nil,
			templates: func() []*model.TaskTemplate { return makeTemplates(10) },
			wantErr:   model.ErrInsufficientPlayers,
		},
		{
			name:      "one user",
			users:     makeUsers(1),
			templates: func() []*model.TaskTemplate { return makeTemplates(10) },
			wantErr:   model.ErrInsufficientPlayers,
		},
		{
			name:      "too few templates",
			users:     makeUsers(2),
			templates: func() []*model.TaskTemplate { return makeTemplates(5) },
			wantErr:   model.ErrInsufficientTemplates,
		},
		{
			name:  "malformed id",
			users: makeUsers(2),
			templates: func() []*model.TaskTemplate {
				ts := makeTemplates(6)
				ts[3].ID = "Task 4"
				return ts
			},
			wantErr: model.ErrInvalidTaskID,
		},
		{
			name:  "empty text",
			users: makeUsers(2),
			templates: func() []*model.TaskTemplate {
				ts := makeTemplates(6)
				for _, tmpl := range ts {
					tmpl.Text = "   "
				}
				return ts
			},
			wantErr: model.ErrDataIntegrity,
		},
		{
			name: "empty target name",
			users: func() []*model.User {
				us := makeUsers(2)
				us[1].Name = " "
				return us
			}(),
			templates: func() []*model.TaskTemplate { return makeTemplates(6) },
			wantErr:   model.ErrDataIntegrity,
		},
		{
			name:  "duplicate template ids",
			users: makeUsers(2),
			templates: func() []*model.TaskTemplate {
				ts := makeTemplates(6)
				ts[5].ID = ts[4].ID
				return ts
			},
			wantErr: model.ErrIncompleteAssignment,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPlan(tt.users, tt.templates(), random.New())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuildPlanDoesNotReorderInput(t *testing.T) {
	templates := makeTemplates(9)
	_, err := BuildPlan(makeUsers(3), templates, random.New())
	require.NoError(t, err)
	for i, tmpl := range templates {
		assert.Equal(t, model.TaskID(fmt.Sprintf("task-%d", i+1)), tmpl.ID)
	}
}
