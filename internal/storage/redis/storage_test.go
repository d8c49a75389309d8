package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/storage"
	"github.com/mcoot/partytasks/internal/storage/storagetest"
	"github.com/mcoot/partytasks/internal/testutil"
)

type StorageSuite struct {
	storagetest.StoreSuite
	mini    *miniredis.Miniredis
	storage *Storage
	logs    *testutil.LogBuffer
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.RoomTTL = time.Hour

	logger, logs := testutil.CaptureLogger()
	s.logs = logs
	s.storage = NewWithClient(client, cfg, logger)
	s.Store = s.storage
	s.Ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) newRoom(code model.RoomCode) model.RoomID {
	id, err := s.storage.CreateRoom(s.Ctx, &model.Room{
		Code:      code,
		Status:    model.RoomStatusWaiting,
		CreatedAt: time.Now().UTC(),
	})
	s.Require().NoError(err)
	return id
}

func (s *StorageSuite) TestRoomTTL() {
	id := s.newRoom("AB12")

	s.True(s.mini.TTL(roomKey(id)) > 0, "Room should have TTL")
	s.True(s.mini.TTL(codeIndexKey("AB12")) > 0, "Code index should have TTL")
}

func (s *StorageSuite) TestUserTTL() {
	roomID := s.newRoom("AB12")
	userID, err := s.storage.AddUser(s.Ctx, roomID, &model.User{Name: "Alice", Role: model.RoleHost})
	s.Require().NoError(err)

	s.True(s.mini.TTL(userKey(roomID, userID)) > 0, "User should have TTL")
	s.True(s.mini.TTL(roomUsersKey(roomID)) > 0, "Roster should have TTL")
}

func (s *StorageSuite) TestNoTTLWhenDisabled() {
	s.storage.cfg.RoomTTL = 0
	id := s.newRoom("AB12")

	s.Equal(time.Duration(0), s.mini.TTL(roomKey(id)))
}

func (s *StorageSuite) TestFieldNamesMatchDocumentShape() {
	roomID := s.newRoom("AB12")
	userID, err := s.storage.AddUser(s.Ctx, roomID, &model.User{Name: "Alice", Role: model.RoleHost})
	s.Require().NoError(err)

	s.Equal("AB12", s.mini.HGet(roomKey(roomID), "code"))
	s.Equal("waiting", s.mini.HGet(roomKey(roomID), "status"))
	s.NotEmpty(s.mini.HGet(roomKey(roomID), "createdAt"))
	s.Equal("Alice", s.mini.HGet(userKey(roomID, userID), "name"))
	s.Equal("host", s.mini.HGet(userKey(roomID, userID), "role"))
	s.Equal("false", s.mini.HGet(userKey(roomID, userID), "ready"))
}

func (s *StorageSuite) TestFindRoomsByCodeDropsExpiredRooms() {
	id := s.newRoom("AB12")
	s.mini.Del(roomKey(id))

	rooms, err := s.storage.FindRoomsByCode(s.Ctx, "AB12")
	s.Require().NoError(err)
	s.Empty(rooms)

	isMember, err := s.mini.SIsMember(codeIndexKey("AB12"), string(id))
	s.Require().NoError(err)
	s.False(isMember, "dangling id should be removed from the index")
}

func (s *StorageSuite) TestMalformedRoomRejected() {
	id := s.newRoom("AB12")
	s.mini.HSet(roomKey(id), "status", "paused")

	_, err := s.storage.GetRoom(s.Ctx, id)
	s.ErrorIs(err, model.ErrMalformedDocument)
}

func (s *StorageSuite) TestMalformedUserRejected() {
	roomID := s.newRoom("AB12")
	userID, err := s.storage.AddUser(s.Ctx, roomID, &model.User{Name: "Alice", Role: model.RoleHost})
	s.Require().NoError(err)
	s.mini.HSet(userKey(roomID, userID), "ready", "maybe")

	_, err = s.storage.GetUsers(s.Ctx, roomID)
	s.ErrorIs(err, model.ErrMalformedDocument)
}

func (s *StorageSuite) TestMissingReadyDefaultsToFalse() {
	roomID := s.newRoom("AB12")
	userID, err := s.storage.AddUser(s.Ctx, roomID, &model.User{Name: "Alice", Role: model.RoleHost, Ready: true})
	s.Require().NoError(err)
	s.mini.HDel(userKey(roomID, userID), "ready")

	users, err := s.storage.GetUsers(s.Ctx, roomID)
	s.Require().NoError(err)
	s.Require().Len(users, 1)
	s.Equal(model.RoleHost, users[0].Role)
	s.False(users[0].Ready)
}

func (s *StorageSuite) TestUserWithoutRoleRejected() {
	roomID := s.newRoom("AB12")
	userID, err := s.storage.AddUser(s.Ctx, roomID, &model.User{Name: "Alice", Role: model.RoleHost})
	s.Require().NoError(err)
	s.mini.HDel(userKey(roomID, userID), "role")

	_, err = s.storage.GetUsers(s.Ctx, roomID)
	s.ErrorIs(err, model.ErrMalformedDocument)
}

func (s *StorageSuite) TestMalformedTemplateRejected() {
	s.mini.HSet(templatesKey(), "task-1", "not json")

	_, err := s.storage.ListTaskTemplates(s.Ctx)
	s.ErrorIs(err, model.ErrMalformedDocument)
}

func (s *StorageSuite) TestUpdateUserReadyDoesNotCreateUser() {
	roomID := s.newRoom("AB12")

	err := s.storage.UpdateUserReady(s.Ctx, roomID, "ghost", true)
	s.ErrorIs(err, model.ErrUserNotFound)
	s.False(s.mini.Exists(userKey(roomID, "ghost")))
}

func (s *StorageSuite) TestAssignmentMarkerKey() {
	roomID := s.newRoom("AB12")

	ok, err := s.storage.ClaimAssignment(s.Ctx, roomID)
	s.Require().NoError(err)
	s.True(ok)
	s.True(s.mini.Exists(assignmentMarkerKey(roomID)))

	s.Require().NoError(s.storage.ReleaseAssignment(s.Ctx, roomID))
	s.False(s.mini.Exists(assignmentMarkerKey(roomID)))
}

func (s *StorageSuite) TestAssignmentMarkerLease() {
	roomID := s.newRoom("AB12")

	ok, err := s.storage.ClaimAssignment(s.Ctx, roomID)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(storage.DefaultAssignmentLease, s.mini.TTL(assignmentMarkerKey(roomID)))

	s.mini.FastForward(storage.DefaultAssignmentLease - time.Second)
	ok, err = s.storage.ClaimAssignment(s.Ctx, roomID)
	s.Require().NoError(err)
	s.False(ok)

	// The holder never released; the lease frees the room for a retry
	s.mini.FastForward(time.Second)
	ok, err = s.storage.ClaimAssignment(s.Ctx, roomID)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *StorageSuite) TestAssignmentMarkerLeaseIndependentOfRoomTTL() {
	s.storage.cfg.RoomTTL = 0
	roomID := s.newRoom("AB12")

	_, err := s.storage.ClaimAssignment(s.Ctx, roomID)
	s.Require().NoError(err)
	s.Equal(storage.DefaultAssignmentLease, s.mini.TTL(assignmentMarkerKey(roomID)))
}

func (s *StorageSuite) TestRejectedJoinWritesNothing() {
	roomID := s.newRoom("AB12")
	_, err := s.storage.ClaimAssignment(s.Ctx, roomID)
	s.Require().NoError(err)

	_, err = s.storage.AddUser(s.Ctx, roomID, &model.User{Name: "Dave", Role: model.RolePlayer})
	s.Require().ErrorIs(err, model.ErrRoomNotJoinable)

	s.False(s.mini.Exists(roomUsersKey(roomID)))
	s.False(s.mini.Exists(roomSeqKey(roomID)))
	// Only the room, its code index and the marker exist
	s.Len(s.mini.Keys(), 3)
}

var errPublishDown = errors.New("publish unavailable")

// failPublish fails every PUBLISH while letting other commands through
type failPublish struct{}

func (failPublish) DialHook(next redis.DialHook) redis.DialHook { return next }

func (failPublish) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "publish" {
			cmd.SetErr(errPublishDown)
			return errPublishDown
		}
		return next(ctx, cmd)
	}
}

func (failPublish) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (s *StorageSuite) TestPublishFailureDoesNotFailWrites() {
	roomID := s.newRoom("AB12")
	alice, err := s.storage.AddUser(s.Ctx, roomID, &model.User{Name: "Alice", Role: model.RoleHost})
	s.Require().NoError(err)
	s.storage.client.AddHook(failPublish{})

	bob, err := s.storage.AddUser(s.Ctx, roomID, &model.User{Name: "Bob", Role: model.RolePlayer})
	s.Require().NoError(err)
	s.NoError(s.storage.UpdateUserReady(s.Ctx, roomID, bob, true))
	tasks := []model.TaskAssignment{{TaskID: "task-1", TaskText: "Wave", TargetUserID: bob, TargetName: "Bob"}}
	s.NoError(s.storage.SetUserTasks(s.Ctx, roomID, alice, tasks))
	s.NoError(s.storage.SetAssignedTasks(s.Ctx, roomID, []model.TaskID{"task-1"}))
	s.NoError(s.storage.UpdateRoomStatus(s.Ctx, roomID, model.RoomStatusWaiting, model.RoomStatusActive))

	users, err := s.storage.GetUsers(s.Ctx, roomID)
	s.Require().NoError(err)
	s.Require().Len(users, 2)
	s.Equal(tasks, users[0].Tasks)
	s.True(users[1].Ready)

	s.Contains(s.logs.String(), `"msg":"failed to publish room change"`)
	s.Contains(s.logs.String(), `"room_id":"`+string(roomID)+`"`)
}
