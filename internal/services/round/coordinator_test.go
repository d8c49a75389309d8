package round

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/partytasks/internal/dependencies/mocks"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/services/assignment"
	"github.com/mcoot/partytasks/internal/services/lifecycle"
	"github.com/mcoot/partytasks/internal/services/membership"
	"github.com/mcoot/partytasks/internal/services/templates"
	"github.com/mcoot/partytasks/internal/storage"
	"github.com/mcoot/partytasks/internal/storage/memory"
	"github.com/mcoot/partytasks/internal/testutil"
)

type CoordinatorSuite struct {
	suite.Suite
	storage     *memory.Storage
	clock       *mocks.MockClock
	random      *mocks.MockRandom
	membership  *membership.Tracker
	engine      *assignment.Engine
	coordinator *Coordinator
	ctx         context.Context
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	logger := testutil.NopLogger()
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.clock = clk
	s.storage = memory.New(memory.WithClock(clk))
	s.random = mocks.NewMockRandom()

	lc := lifecycle.New(s.storage, clk, s.random, logger)
	s.membership = membership.New(s.storage, clk, logger)
	s.engine = assignment.New(s.storage, templates.New(s.storage, logger), s.random, logger)
	s.coordinator = New(lc, s.membership, s.engine, logger)
	s.ctx = context.Background()

	ts := make([]*model.TaskTemplate, 12)
	for i := range ts {
		ts[i] = &model.TaskTemplate{ID: model.TaskID(fmt.Sprintf("task-%d", i+1)), Text: fmt.Sprintf("task %d", i+1)}
	}
	s.Require().NoError(s.storage.SaveTaskTemplates(s.ctx, ts))
}

// setupRoom hosts a room as Alice and joins the given players
func (s *CoordinatorSuite) setupRoom(players ...string) (*model.Room, *model.User, []*model.User) {
	s.random.QueueString("AB12")
	room, host, err := s.coordinator.CreateAndHost(s.ctx, "Alice")
	s.Require().NoError(err)

	joined := make([]*model.User, 0, len(players))
	for _, name := range players {
		_, u, err := s.coordinator.JoinByCode(s.ctx, string(room.Code), name)
		s.Require().NoError(err)
		joined = append(joined, u)
	}
	return room, host, joined
}

func (s *CoordinatorSuite) readyAll(roomID model.RoomID) {
	users, err := s.membership.ListUsers(s.ctx, roomID)
	s.Require().NoError(err)
	for _, u := range users {
		s.Require().NoError(s.membership.UpdateUserReady(s.ctx, roomID, u.ID, true))
	}
}

func (s *CoordinatorSuite) TestCreateAndHost() {
	s.random.QueueString("AB12")
	room, host, err := s.coordinator.CreateAndHost(s.ctx, "  Alice ")
	s.Require().NoError(err)

	s.Equal(model.RoomCode("AB12"), room.Code)
	s.Equal("Alice", host.Name)
	s.True(host.IsHost())

	users, _ := s.membership.ListUsers(s.ctx, room.ID)
	s.Require().Len(users, 1)
	s.Equal(host.ID, users[0].ID)
}

func (s *CoordinatorSuite) TestCreateAndHostRejectsEmptyNameBeforeCreating() {
	s.random.QueueString("AB12")
	_, _, err := s.coordinator.CreateAndHost(s.ctx, "")
	s.ErrorIs(err, model.ErrEmptyName)

	rooms, err := s.storage.FindRoomsByCode(s.ctx, "AB12")
	s.Require().NoError(err)
	s.Empty(rooms)
}

func (s *CoordinatorSuite) TestJoinByCodeJoinsAsPlayer() {
	room, _, joined := s.setupRoom("Bob")

	s.Equal(model.RolePlayer, joined[0].Role)
	users, _ := s.membership.ListUsers(s.ctx, room.ID)
	s.Len(users, 2)
}

func (s *CoordinatorSuite) TestJoinByCodeLowercase() {
	room, _, _ := s.setupRoom()

	found, _, err := s.coordinator.JoinByCode(s.ctx, " ab12", "Bob")
	s.Require().NoError(err)
	s.Equal(room.ID, found.ID)
}

func (s *CoordinatorSuite) TestJoinByCodeUnknown() {
	_, _, err := s.coordinator.JoinByCode(s.ctx, "ZZZZ", "Bob")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *CoordinatorSuite) TestJoinByCodeEmptyName() {
	s.setupRoom()
	_, _, err := s.coordinator.JoinByCode(s.ctx, "AB12", " ")
	s.ErrorIs(err, model.ErrEmptyName)
}

func (s *CoordinatorSuite) TestStartRound() {
	room, host, _ := s.setupRoom("Bob", "Carol")
	s.readyAll(room.ID)

	result, err := s.coordinator.StartRound(s.ctx, room.ID, host.ID)
	s.Require().NoError(err)
	s.Equal(assignment.OutcomeAssigned, result.Outcome)

	stored, _ := s.storage.GetRoom(s.ctx, room.ID)
	s.True(stored.IsActive())
	s.Len(stored.AssignedTasks, 9)

	users, _ := s.membership.ListUsers(s.ctx, room.ID)
	for _, u := range users {
		s.Len(u.Tasks, model.TasksPerUser)
	}
}

func (s *CoordinatorSuite) TestStartRoundNotHost() {
	room, _, joined := s.setupRoom("Bob")
	s.readyAll(room.ID)

	_, err := s.coordinator.StartRound(s.ctx, room.ID, joined[0].ID)
	s.ErrorIs(err, model.ErrNotHost)

	stored, _ := s.storage.GetRoom(s.ctx, room.ID)
	s.False(stored.IsActive())
}

func (s *CoordinatorSuite) TestStartRoundUnknownRequester() {
	room, _, _ := s.setupRoom("Bob")
	s.readyAll(room.ID)

	_, err := s.coordinator.StartRound(s.ctx, room.ID, "ghost")
	s.ErrorIs(err, model.ErrNotHost)
}

func (s *CoordinatorSuite) TestStartRoundNotAllReady() {
	room, host, _ := s.setupRoom("Bob")
	s.Require().NoError(s.membership.UpdateUserReady(s.ctx, room.ID, host.ID, true))

	_, err := s.coordinator.StartRound(s.ctx, room.ID, host.ID)
	s.ErrorIs(err, model.ErrNotAllReady)

	users, _ := s.membership.ListUsers(s.ctx, room.ID)
	for _, u := range users {
		s.Empty(u.Tasks)
	}
}

func (s *CoordinatorSuite) TestStartRoundAloneFails() {
	room, host, _ := s.setupRoom()
	s.readyAll(room.ID)

	_, err := s.coordinator.StartRound(s.ctx, room.ID, host.ID)
	s.ErrorIs(err, model.ErrInsufficientPlayers)

	stored, _ := s.storage.GetRoom(s.ctx, room.ID)
	s.False(stored.IsActive())
}

func (s *CoordinatorSuite) TestStartRoundTwiceIsNoOp() {
	room, host, _ := s.setupRoom("Bob")
	s.readyAll(room.ID)

	_, err := s.coordinator.StartRound(s.ctx, room.ID, host.ID)
	s.Require().NoError(err)
	before, _ := s.membership.ListUsers(s.ctx, room.ID)

	result, err := s.coordinator.StartRound(s.ctx, room.ID, host.ID)
	s.Require().NoError(err)
	s.Equal(assignment.OutcomeAlreadyAssigned, result.Outcome)

	after, _ := s.membership.ListUsers(s.ctx, room.ID)
	s.Equal(before, after)
}

func (s *CoordinatorSuite) TestStartRoundWhileInProgressLeavesRoomWaiting() {
	room, host, _ := s.setupRoom("Bob")
	s.readyAll(room.ID)
	claimed, err := s.storage.ClaimAssignment(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Require().True(claimed)

	result, err := s.coordinator.StartRound(s.ctx, room.ID, host.ID)
	s.Require().NoError(err)
	s.Equal(assignment.OutcomeInProgress, result.Outcome)

	stored, _ := s.storage.GetRoom(s.ctx, room.ID)
	s.False(stored.IsActive())
}

func (s *CoordinatorSuite) TestJoinAfterStartRejected() {
	room, host, _ := s.setupRoom("Bob")
	s.readyAll(room.ID)
	_, err := s.coordinator.StartRound(s.ctx, room.ID, host.ID)
	s.Require().NoError(err)

	_, _, err = s.coordinator.JoinByCode(s.ctx, string(room.Code), "Late")
	s.ErrorIs(err, model.ErrRoomNotJoinable)
}

func (s *CoordinatorSuite) TestJoinAfterDealRejected() {
	room, _, _ := s.setupRoom("Bob", "Carol")

	result, err := s.engine.AssignTasksToRoom(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Require().Equal(assignment.OutcomeAssigned, result.Outcome)
	stored, _ := s.storage.GetRoom(s.ctx, room.ID)
	s.Require().False(stored.IsActive(), "dealing alone leaves the room waiting")

	_, _, err = s.coordinator.JoinByCode(s.ctx, string(room.Code), "Dave")
	s.ErrorIs(err, model.ErrRoomNotJoinable)

	users, _ := s.membership.ListUsers(s.ctx, room.ID)
	s.Len(users, 3)
	for _, u := range users {
		s.True(u.HasTasks(), u.Name)
	}
}

func (s *CoordinatorSuite) TestJoinWhileDealInProgressRejected() {
	room, _, _ := s.setupRoom("Bob")
	claimed, err := s.storage.ClaimAssignment(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Require().True(claimed)

	_, _, err = s.coordinator.JoinByCode(s.ctx, string(room.Code), "Dave")
	s.ErrorIs(err, model.ErrRoomNotJoinable)
}

func (s *CoordinatorSuite) TestStartRoundRecoversFromStalledDeal() {
	room, host, _ := s.setupRoom("Bob")
	s.readyAll(room.ID)

	// A holder that died without releasing
	claimed, err := s.storage.ClaimAssignment(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Require().True(claimed)

	result, err := s.coordinator.StartRound(s.ctx, room.ID, host.ID)
	s.Require().NoError(err)
	s.Equal(assignment.OutcomeInProgress, result.Outcome)

	s.clock.Advance(storage.DefaultAssignmentLease)
	result, err = s.coordinator.StartRound(s.ctx, room.ID, host.ID)
	s.Require().NoError(err)
	s.Equal(assignment.OutcomeAssigned, result.Outcome)

	stored, _ := s.storage.GetRoom(s.ctx, room.ID)
	s.True(stored.IsActive())
}
