package membership

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/partytasks/internal/dependencies/mocks"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/storage/memory"
	"github.com/mcoot/partytasks/internal/testutil"
)

type TrackerSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	tracker *Tracker
	ctx     context.Context
	roomID  model.RoomID
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func (s *TrackerSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.tracker = New(s.storage, s.clock, testutil.NopLogger())
	s.ctx = context.Background()

	id, err := s.storage.CreateRoom(s.ctx, &model.Room{
		Code:      "AB12",
		Status:    model.RoomStatusWaiting,
		CreatedAt: s.clock.Now(),
	})
	s.Require().NoError(err)
	s.roomID = id
}

// JoinRoom tests

func (s *TrackerSuite) TestJoinRoomCreatesUnreadyUser() {
	user, err := s.tracker.JoinRoom(s.ctx, s.roomID, "Alice", model.RoleHost)
	s.Require().NoError(err)

	s.NotEmpty(user.ID)
	s.Equal("Alice", user.Name)
	s.Equal(model.RoleHost, user.Role)
	s.False(user.Ready)
	s.Equal(s.clock.Now(), user.JoinedAt)
	s.Empty(user.Tasks)
}

func (s *TrackerSuite) TestJoinRoomTrimsName() {
	user, err := s.tracker.JoinRoom(s.ctx, s.roomID, "  Bob \t", model.RolePlayer)
	s.Require().NoError(err)
	s.Equal("Bob", user.Name)

	users, err := s.tracker.ListUsers(s.ctx, s.roomID)
	s.Require().NoError(err)
	s.Require().Len(users, 1)
	s.Equal("Bob", users[0].Name)
}

func (s *TrackerSuite) TestJoinRoomRejectsEmptyName() {
	_, err := s.tracker.JoinRoom(s.ctx, s.roomID, "   ", model.RolePlayer)
	s.ErrorIs(err, model.ErrEmptyName)

	users, _ := s.tracker.ListUsers(s.ctx, s.roomID)
	s.Empty(users)
}

func (s *TrackerSuite) TestJoinRoomRejectsLongName() {
	_, err := s.tracker.JoinRoom(s.ctx, s.roomID, strings.Repeat("a", MaxNameLength+1), model.RolePlayer)
	s.ErrorIs(err, model.ErrNameTooLong)
}

func (s *TrackerSuite) TestJoinRoomCountsCharactersNotBytes() {
	name := strings.Repeat("é", MaxNameLength)
	user, err := s.tracker.JoinRoom(s.ctx, s.roomID, name, model.RolePlayer)
	s.Require().NoError(err)
	s.Equal(name, user.Name)
}

func (s *TrackerSuite) TestJoinRoomRejectsUnknownRole() {
	_, err := s.tracker.JoinRoom(s.ctx, s.roomID, "Alice", "spectator")
	s.ErrorIs(err, model.ErrInvalidRole)
}

func (s *TrackerSuite) TestJoinRoomUnknownRoom() {
	_, err := s.tracker.JoinRoom(s.ctx, "nonexistent", "Alice", model.RolePlayer)
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *TrackerSuite) TestJoinRoomRejectsActiveRoom() {
	s.Require().NoError(s.storage.UpdateRoomStatus(s.ctx, s.roomID, model.RoomStatusWaiting, model.RoomStatusActive))

	_, err := s.tracker.JoinRoom(s.ctx, s.roomID, "Late", model.RolePlayer)
	s.ErrorIs(err, model.ErrRoomNotJoinable)
}

func (s *TrackerSuite) TestJoinRoomRejectsDealtRoom() {
	alice, err := s.tracker.JoinRoom(s.ctx, s.roomID, "Alice", model.RoleHost)
	s.Require().NoError(err)
	bob, err := s.tracker.JoinRoom(s.ctx, s.roomID, "Bob", model.RolePlayer)
	s.Require().NoError(err)
	s.Require().NoError(s.storage.SetUserTasks(s.ctx, s.roomID, alice.ID, []model.TaskAssignment{
		{TaskID: "task-1", TaskText: "Wave", TargetUserID: bob.ID, TargetName: "Bob"},
	}))

	_, err = s.tracker.JoinRoom(s.ctx, s.roomID, "Late", model.RolePlayer)
	s.ErrorIs(err, model.ErrRoomNotJoinable)
}

func (s *TrackerSuite) TestListUsersInJoinOrder() {
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		_, err := s.tracker.JoinRoom(s.ctx, s.roomID, name, model.RolePlayer)
		s.Require().NoError(err)
		s.clock.Advance(time.Second)
	}

	users, err := s.tracker.ListUsers(s.ctx, s.roomID)
	s.Require().NoError(err)
	s.Require().Len(users, 3)
	s.Equal("Alice", users[0].Name)
	s.Equal("Bob", users[1].Name)
	s.Equal("Carol", users[2].Name)
}

// UpdateUserReady tests

func (s *TrackerSuite) TestUpdateUserReady() {
	user, _ := s.tracker.JoinRoom(s.ctx, s.roomID, "Alice", model.RolePlayer)

	s.Require().NoError(s.tracker.UpdateUserReady(s.ctx, s.roomID, user.ID, true))
	stored, err := s.tracker.GetUser(s.ctx, s.roomID, user.ID)
	s.Require().NoError(err)
	s.True(stored.Ready)

	s.Require().NoError(s.tracker.UpdateUserReady(s.ctx, s.roomID, user.ID, false))
	stored, _ = s.tracker.GetUser(s.ctx, s.roomID, user.ID)
	s.False(stored.Ready)
}

func (s *TrackerSuite) TestUpdateUserReadyUnknownUser() {
	err := s.tracker.UpdateUserReady(s.ctx, s.roomID, "ghost", true)
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *TrackerSuite) TestUpdateUserReadyNotifiesSubscribers() {
	user, _ := s.tracker.JoinRoom(s.ctx, s.roomID, "Alice", model.RolePlayer)

	sub, err := s.storage.Subscribe(s.ctx, s.roomID)
	s.Require().NoError(err)
	defer sub.Close()

	s.Require().NoError(s.tracker.UpdateUserReady(s.ctx, s.roomID, user.ID, true))

	select {
	case change := <-sub.Changes():
		s.Equal(model.ChangeUsers, change.Kind)
	case <-time.After(2 * time.Second):
		s.Fail("no change delivered")
	}
}

func (s *TrackerSuite) TestGetUserNotFound() {
	_, err := s.tracker.GetUser(s.ctx, s.roomID, "ghost")
	s.ErrorIs(err, model.ErrUserNotFound)
}

// Pure roster helpers

func TestComputeReadiness(t *testing.T) {
	tests := []struct {
		name  string
		users []*model.User
		want  bool
	}{
		{"empty roster", nil, false},
		{"single ready", []*model.User{{Ready: true}}, true},
		{"one not ready", []*model.User{{Ready: true}, {Ready: false}}, false},
		{"all ready", []*model.User{{Ready: true}, {Ready: true}, {Ready: true}}, true},
		{"none ready", []*model.User{{Ready: false}, {Ready: false}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeReadiness(tt.users))
		})
	}
}

func TestIsHost(t *testing.T) {
	users := []*model.User{
		{ID: "u1", Role: model.RoleHost},
		{ID: "u2", Role: model.RolePlayer},
	}
	assert.True(t, IsHost(users, "u1"))
	assert.False(t, IsHost(users, "u2"))
	assert.False(t, IsHost(users, "u3"))
	assert.False(t, IsHost(nil, "u1"))
}

func TestNormalizeName(t *testing.T) {
	name, err := NormalizeName("  Dana  ")
	assert.NoError(t, err)
	assert.Equal(t, "Dana", name)

	_, err = NormalizeName("")
	assert.ErrorIs(t, err, model.ErrEmptyName)
}
