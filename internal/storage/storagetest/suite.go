// Package storagetest holds the behaviour suite every storage.Store
// implementation must pass.
package storagetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/storage"
)

// StoreSuite runs the shared store tests. Implementations embed it and set
// NewStore in SetupTest.
type StoreSuite struct {
	suite.Suite
	Store storage.Store
	Ctx   context.Context
}

var testTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func (s *StoreSuite) createRoom(code model.RoomCode) model.RoomID {
	id, err := s.Store.CreateRoom(s.Ctx, &model.Room{
		Code:      code,
		Status:    model.RoomStatusWaiting,
		CreatedAt: testTime,
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(id)
	return id
}

func (s *StoreSuite) addUser(roomID model.RoomID, name string, role model.Role) model.UserID {
	id, err := s.Store.AddUser(s.Ctx, roomID, &model.User{
		Name:     name,
		Role:     role,
		JoinedAt: testTime,
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(id)
	return id
}

func (s *StoreSuite) waitForChange(sub storage.Subscription) model.Change {
	select {
	case c, ok := <-sub.Changes():
		s.Require().True(ok, "subscription closed unexpectedly")
		return c
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for change")
	}
	return model.Change{}
}

// Room tests

func (s *StoreSuite) TestCreateAndGetRoom() {
	id := s.createRoom("AB12")

	room, err := s.Store.GetRoom(s.Ctx, id)
	s.Require().NoError(err)
	s.Equal(id, room.ID)
	s.Equal(model.RoomCode("AB12"), room.Code)
	s.Equal(model.RoomStatusWaiting, room.Status)
	s.True(testTime.Equal(room.CreatedAt))
	s.Empty(room.AssignedTasks)
}

func (s *StoreSuite) TestCreateRoomAssignsDistinctIDs() {
	a := s.createRoom("AB12")
	b := s.createRoom("AB12")
	s.NotEqual(a, b)
}

func (s *StoreSuite) TestGetRoomNotFound() {
	_, err := s.Store.GetRoom(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StoreSuite) TestFindRoomsByCode() {
	id := s.createRoom("WXYZ")
	s.createRoom("QQQQ")

	rooms, err := s.Store.FindRoomsByCode(s.Ctx, "WXYZ")
	s.Require().NoError(err)
	s.Require().Len(rooms, 1)
	s.Equal(id, rooms[0].ID)
}

func (s *StoreSuite) TestFindRoomsByCodeReturnsAllMatches() {
	s.createRoom("DUPE")
	s.createRoom("DUPE")

	rooms, err := s.Store.FindRoomsByCode(s.Ctx, "DUPE")
	s.Require().NoError(err)
	s.Len(rooms, 2)
}

func (s *StoreSuite) TestFindRoomsByCodeNoMatch() {
	rooms, err := s.Store.FindRoomsByCode(s.Ctx, "NONE")
	s.Require().NoError(err)
	s.Empty(rooms)
}

func (s *StoreSuite) TestUpdateRoomStatus() {
	id := s.createRoom("AB12")

	err := s.Store.UpdateRoomStatus(s.Ctx, id, model.RoomStatusWaiting, model.RoomStatusActive)
	s.Require().NoError(err)

	room, err := s.Store.GetRoom(s.Ctx, id)
	s.Require().NoError(err)
	s.Equal(model.RoomStatusActive, room.Status)
}

func (s *StoreSuite) TestUpdateRoomStatusConflict() {
	id := s.createRoom("AB12")
	s.Require().NoError(s.Store.UpdateRoomStatus(s.Ctx, id, model.RoomStatusWaiting, model.RoomStatusActive))

	err := s.Store.UpdateRoomStatus(s.Ctx, id, model.RoomStatusWaiting, model.RoomStatusActive)
	s.ErrorIs(err, model.ErrInvalidStatusTransition)
}

func (s *StoreSuite) TestUpdateRoomStatusNotFound() {
	err := s.Store.UpdateRoomStatus(s.Ctx, "nonexistent", model.RoomStatusWaiting, model.RoomStatusActive)
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StoreSuite) TestSetAssignedTasks() {
	id := s.createRoom("AB12")

	err := s.Store.SetAssignedTasks(s.Ctx, id, []model.TaskID{"task-3", "task-1"})
	s.Require().NoError(err)

	room, err := s.Store.GetRoom(s.Ctx, id)
	s.Require().NoError(err)
	s.Equal([]model.TaskID{"task-3", "task-1"}, room.AssignedTasks)
}

func (s *StoreSuite) TestSetAssignedTasksNotFound() {
	err := s.Store.SetAssignedTasks(s.Ctx, "nonexistent", []model.TaskID{"task-1"})
	s.ErrorIs(err, model.ErrRoomNotFound)
}

// Assignment marker tests

func (s *StoreSuite) TestClaimAssignmentOnce() {
	id := s.createRoom("AB12")

	ok, err := s.Store.ClaimAssignment(s.Ctx, id)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.Store.ClaimAssignment(s.Ctx, id)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StoreSuite) TestReleaseAssignmentAllowsReclaim() {
	id := s.createRoom("AB12")

	_, err := s.Store.ClaimAssignment(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().NoError(s.Store.ReleaseAssignment(s.Ctx, id))

	ok, err := s.Store.ClaimAssignment(s.Ctx, id)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *StoreSuite) TestClaimAssignmentIsPerRoom() {
	a := s.createRoom("AAAA")
	b := s.createRoom("BBBB")

	ok, err := s.Store.ClaimAssignment(s.Ctx, a)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.Store.ClaimAssignment(s.Ctx, b)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *StoreSuite) TestClaimAssignmentRoomNotFound() {
	_, err := s.Store.ClaimAssignment(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

// User tests

func (s *StoreSuite) TestAddUserPreservesJoinOrder() {
	roomID := s.createRoom("AB12")
	alice := s.addUser(roomID, "Alice", model.RoleHost)
	bob := s.addUser(roomID, "Bob", model.RolePlayer)
	carol := s.addUser(roomID, "Carol", model.RolePlayer)

	users, err := s.Store.GetUsers(s.Ctx, roomID)
	s.Require().NoError(err)
	s.Require().Len(users, 3)
	s.Equal([]model.UserID{alice, bob, carol}, []model.UserID{users[0].ID, users[1].ID, users[2].ID})
	s.Equal("Alice", users[0].Name)
	s.Equal(model.RoleHost, users[0].Role)
	s.Equal(model.RolePlayer, users[1].Role)
	s.False(users[2].Ready)
	s.True(testTime.Equal(users[1].JoinedAt))
}

func (s *StoreSuite) TestAddUserRoomNotFound() {
	_, err := s.Store.AddUser(s.Ctx, "nonexistent", &model.User{Name: "Alice", Role: model.RolePlayer})
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StoreSuite) TestAddUserRejectedWhileMarkerHeld() {
	roomID := s.createRoom("AB12")
	s.addUser(roomID, "Alice", model.RoleHost)
	ok, err := s.Store.ClaimAssignment(s.Ctx, roomID)
	s.Require().NoError(err)
	s.Require().True(ok)

	_, err = s.Store.AddUser(s.Ctx, roomID, &model.User{Name: "Dave", Role: model.RolePlayer})
	s.ErrorIs(err, model.ErrRoomNotJoinable)

	users, err := s.Store.GetUsers(s.Ctx, roomID)
	s.Require().NoError(err)
	s.Len(users, 1)

	// A released marker reopens the room
	s.Require().NoError(s.Store.ReleaseAssignment(s.Ctx, roomID))
	s.addUser(roomID, "Dave", model.RolePlayer)
}

func (s *StoreSuite) TestAddUserRejectedOnceTasksDealt() {
	roomID := s.createRoom("AB12")
	alice := s.addUser(roomID, "Alice", model.RoleHost)
	bob := s.addUser(roomID, "Bob", model.RolePlayer)
	s.Require().NoError(s.Store.SetUserTasks(s.Ctx, roomID, alice, []model.TaskAssignment{
		{TaskID: "task-1", TaskText: "Wave", TargetUserID: bob, TargetName: "Bob"},
	}))

	_, err := s.Store.AddUser(s.Ctx, roomID, &model.User{Name: "Dave", Role: model.RolePlayer})
	s.ErrorIs(err, model.ErrRoomNotJoinable)
}

func (s *StoreSuite) TestAddUserIgnoresEmptyTaskLists() {
	roomID := s.createRoom("AB12")
	alice := s.addUser(roomID, "Alice", model.RoleHost)
	s.Require().NoError(s.Store.SetUserTasks(s.Ctx, roomID, alice, []model.TaskAssignment{}))

	s.addUser(roomID, "Bob", model.RolePlayer)
}

func (s *StoreSuite) TestAddUserRejectedWhenActive() {
	roomID := s.createRoom("AB12")
	s.Require().NoError(s.Store.UpdateRoomStatus(s.Ctx, roomID, model.RoomStatusWaiting, model.RoomStatusActive))

	_, err := s.Store.AddUser(s.Ctx, roomID, &model.User{Name: "Dave", Role: model.RolePlayer})
	s.ErrorIs(err, model.ErrRoomNotJoinable)
}

func (s *StoreSuite) TestGetUsersEmptyRoom() {
	roomID := s.createRoom("AB12")

	users, err := s.Store.GetUsers(s.Ctx, roomID)
	s.Require().NoError(err)
	s.Empty(users)
}

func (s *StoreSuite) TestGetUsersRoomNotFound() {
	_, err := s.Store.GetUsers(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StoreSuite) TestUpdateUserReady() {
	roomID := s.createRoom("AB12")
	bob := s.addUser(roomID, "Bob", model.RolePlayer)

	s.Require().NoError(s.Store.UpdateUserReady(s.Ctx, roomID, bob, true))

	users, err := s.Store.GetUsers(s.Ctx, roomID)
	s.Require().NoError(err)
	s.True(users[0].Ready)

	s.Require().NoError(s.Store.UpdateUserReady(s.Ctx, roomID, bob, false))

	users, err = s.Store.GetUsers(s.Ctx, roomID)
	s.Require().NoError(err)
	s.False(users[0].Ready)
}

func (s *StoreSuite) TestUpdateUserReadyUserNotFound() {
	roomID := s.createRoom("AB12")

	err := s.Store.UpdateUserReady(s.Ctx, roomID, "nonexistent", true)
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *StoreSuite) TestSetUserTasks() {
	roomID := s.createRoom("AB12")
	alice := s.addUser(roomID, "Alice", model.RoleHost)
	bob := s.addUser(roomID, "Bob", model.RolePlayer)

	tasks := []model.TaskAssignment{
		{TaskID: "task-1", TaskText: "Wave", TargetUserID: bob, TargetName: "Bob"},
		{TaskID: "task-2", TaskText: "Wink", TargetUserID: bob, TargetName: "Bob"},
		{TaskID: "task-3", TaskText: "Nod", TargetUserID: bob, TargetName: "Bob"},
	}
	s.Require().NoError(s.Store.SetUserTasks(s.Ctx, roomID, alice, tasks))

	users, err := s.Store.GetUsers(s.Ctx, roomID)
	s.Require().NoError(err)
	s.Equal(tasks, users[0].Tasks)
	s.Empty(users[1].Tasks)
}

func (s *StoreSuite) TestSetUserTasksUserNotFound() {
	roomID := s.createRoom("AB12")

	err := s.Store.SetUserTasks(s.Ctx, roomID, "nonexistent", nil)
	s.ErrorIs(err, model.ErrUserNotFound)
}

// Task template tests

func (s *StoreSuite) TestSaveAndListTaskTemplates() {
	err := s.Store.SaveTaskTemplates(s.Ctx, []*model.TaskTemplate{
		{ID: "task-10", Text: "Ten"},
		{ID: "task-2", Text: "Two"},
		{ID: "task-1", Text: "One"},
	})
	s.Require().NoError(err)

	templates, err := s.Store.ListTaskTemplates(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(templates, 3)
	s.Equal(model.TaskID("task-1"), templates[0].ID)
	s.Equal(model.TaskID("task-2"), templates[1].ID)
	s.Equal(model.TaskID("task-10"), templates[2].ID)
	s.Equal("Ten", templates[2].Text)
}

func (s *StoreSuite) TestSaveTaskTemplatesReplacesCatalog() {
	s.Require().NoError(s.Store.SaveTaskTemplates(s.Ctx, []*model.TaskTemplate{{ID: "task-1", Text: "One"}}))
	s.Require().NoError(s.Store.SaveTaskTemplates(s.Ctx, []*model.TaskTemplate{{ID: "task-5", Text: "Five"}}))

	templates, err := s.Store.ListTaskTemplates(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(templates, 1)
	s.Equal(model.TaskID("task-5"), templates[0].ID)
}

func (s *StoreSuite) TestListTaskTemplatesEmpty() {
	templates, err := s.Store.ListTaskTemplates(s.Ctx)
	s.Require().NoError(err)
	s.Empty(templates)
}

// Subscription tests

func (s *StoreSuite) TestSubscribeReceivesUserChanges() {
	roomID := s.createRoom("AB12")
	sub, err := s.Store.Subscribe(s.Ctx, roomID)
	s.Require().NoError(err)
	defer func() { _ = sub.Close() }()

	s.addUser(roomID, "Alice", model.RoleHost)

	c := s.waitForChange(sub)
	s.Equal(roomID, c.RoomID)
	s.Equal(model.ChangeUsers, c.Kind)
}

func (s *StoreSuite) TestSubscribeReceivesRoomChanges() {
	roomID := s.createRoom("AB12")
	sub, err := s.Store.Subscribe(s.Ctx, roomID)
	s.Require().NoError(err)
	defer func() { _ = sub.Close() }()

	s.Require().NoError(s.Store.UpdateRoomStatus(s.Ctx, roomID, model.RoomStatusWaiting, model.RoomStatusActive))

	c := s.waitForChange(sub)
	s.Equal(model.ChangeRoom, c.Kind)
}

func (s *StoreSuite) TestSubscribeIgnoresOtherRooms() {
	roomID := s.createRoom("AB12")
	other := s.createRoom("CD34")
	sub, err := s.Store.Subscribe(s.Ctx, roomID)
	s.Require().NoError(err)
	defer func() { _ = sub.Close() }()

	s.addUser(other, "Alice", model.RoleHost)
	s.addUser(roomID, "Bob", model.RoleHost)

	c := s.waitForChange(sub)
	s.Equal(roomID, c.RoomID)
}

func (s *StoreSuite) TestSlowSubscriberDoesNotBlockWriters() {
	roomID := s.createRoom("AB12")
	bob := s.addUser(roomID, "Bob", model.RolePlayer)
	sub, err := s.Store.Subscribe(s.Ctx, roomID)
	s.Require().NoError(err)
	defer func() { _ = sub.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = s.Store.UpdateUserReady(s.Ctx, roomID, bob, i%2 == 0)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.FailNow("writers blocked on an unread subscription")
	}

	s.waitForChange(sub)
	s.LessOrEqual(len(sub.Changes()), 1)
}

func (s *StoreSuite) TestCloseEndsSubscription() {
	roomID := s.createRoom("AB12")
	sub, err := s.Store.Subscribe(s.Ctx, roomID)
	s.Require().NoError(err)

	s.Require().NoError(sub.Close())
	s.Require().NoError(sub.Close())

	s.Eventually(func() bool {
		select {
		case _, ok := <-sub.Changes():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *StoreSuite) TestContextCancelEndsSubscription() {
	roomID := s.createRoom("AB12")
	ctx, cancel := context.WithCancel(s.Ctx)
	sub, err := s.Store.Subscribe(ctx, roomID)
	s.Require().NoError(err)

	cancel()

	s.Eventually(func() bool {
		select {
		case _, ok := <-sub.Changes():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *StoreSuite) TestSubscribeRoomNotFound() {
	_, err := s.Store.Subscribe(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrRoomNotFound)
}
