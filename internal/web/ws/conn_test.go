package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/partytasks/internal/api/apierr"
	"github.com/mcoot/partytasks/internal/dependencies/mocks"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/projector"
	"github.com/mcoot/partytasks/internal/services/membership"
	"github.com/mcoot/partytasks/internal/storage/memory"
	"github.com/mcoot/partytasks/internal/testutil"
)

const readTimeout = 2 * time.Second

type ConnSuite struct {
	suite.Suite
	storage    *memory.Storage
	membership *membership.Tracker
	server     *httptest.Server
	ctx        context.Context
	roomID     model.RoomID
	host       *model.User
}

func TestConnSuite(t *testing.T) {
	suite.Run(t, new(ConnSuite))
}

func (s *ConnSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.ctx = context.Background()
	s.storage = memory.New()
	s.membership = membership.New(s.storage, mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)), logger)

	handler := NewHandler(projector.New(s.storage, logger), s.membership, logger)
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		handler.Serve(w, r, model.RoomID(q.Get("room_id")), model.UserID(q.Get("user_id")))
	}))

	id, err := s.storage.CreateRoom(s.ctx, &model.Room{Code: "AB12", Status: model.RoomStatusWaiting})
	s.Require().NoError(err)
	s.roomID = id

	s.host, err = s.membership.JoinRoom(s.ctx, s.roomID, "Alice", model.RoleHost)
	s.Require().NoError(err)
}

func (s *ConnSuite) TearDownTest() {
	s.server.Close()
}

func (s *ConnSuite) dial(roomID model.RoomID, userID model.UserID) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") +
		"/?room_id=" + string(roomID) + "&user_id=" + string(userID)
	return websocket.DefaultDialer.Dial(url, nil)
}

func (s *ConnSuite) connect(userID model.UserID) *websocket.Conn {
	conn, _, err := s.dial(s.roomID, userID)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *ConnSuite) read(conn *websocket.Conn) ServerMessage {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(readTimeout)))
	var msg ServerMessage
	s.Require().NoError(conn.ReadJSON(&msg))
	return msg
}

// readUntil reads messages until match accepts one
func (s *ConnSuite) readUntil(conn *websocket.Conn, match func(ServerMessage) bool) ServerMessage {
	for {
		msg := s.read(conn)
		if match(msg) {
			return msg
		}
	}
}

func (s *ConnSuite) TestInitialSnapshots() {
	conn := s.connect("")

	roster := s.read(conn)
	s.Equal(TypeRoster, roster.Type)
	s.Require().NotNil(roster.Roster)
	s.Require().Len(roster.Roster.Users, 1)
	s.Equal("Alice", roster.Roster.Users[0].Name)
	s.True(roster.Roster.Users[0].IsHost)

	room := s.read(conn)
	s.Equal(TypeRoom, room.Type)
	s.Require().NotNil(room.Room)
	s.Equal("waiting", room.Room.Status)
	s.False(room.Activated)
}

func (s *ConnSuite) TestSeesJoins() {
	conn := s.connect("")

	_, err := s.membership.JoinRoom(s.ctx, s.roomID, "Bob", model.RolePlayer)
	s.Require().NoError(err)

	msg := s.readUntil(conn, func(m ServerMessage) bool {
		return m.Type == TypeRoster && len(m.Roster.Users) == 2
	})
	s.Equal("Bob", msg.Roster.Users[1].Name)
}

func (s *ConnSuite) TestReadyFromSocket() {
	conn := s.connect(s.host.ID)

	ready := true
	s.Require().NoError(conn.WriteJSON(ClientMessage{Type: TypeReady, Ready: &ready}))

	msg := s.readUntil(conn, func(m ServerMessage) bool {
		return m.Type == TypeRoster && m.Roster.AllReady
	})
	s.True(msg.Roster.Users[0].Ready)

	user, err := s.membership.GetUser(s.ctx, s.roomID, s.host.ID)
	s.Require().NoError(err)
	s.True(user.Ready)
}

func (s *ConnSuite) TestReadyAsSpectatorFails() {
	conn := s.connect("")

	ready := true
	s.Require().NoError(conn.WriteJSON(ClientMessage{Type: TypeReady, Ready: &ready}))

	msg := s.readUntil(conn, func(m ServerMessage) bool { return m.Type == TypeError })
	s.Equal(apierr.CodeInvalidRequest, msg.Error.Code)
}

func (s *ConnSuite) TestReadyWithoutValueFails() {
	conn := s.connect(s.host.ID)

	s.Require().NoError(conn.WriteJSON(ClientMessage{Type: TypeReady}))

	msg := s.readUntil(conn, func(m ServerMessage) bool { return m.Type == TypeError })
	s.Equal(apierr.CodeInvalidRequest, msg.Error.Code)
}

func (s *ConnSuite) TestUnknownMessageType() {
	conn := s.connect(s.host.ID)

	s.Require().NoError(conn.WriteJSON(ClientMessage{Type: "shout"}))

	msg := s.readUntil(conn, func(m ServerMessage) bool { return m.Type == TypeError })
	s.Equal(apierr.CodeInvalidRequest, msg.Error.Code)
}

func (s *ConnSuite) TestActivationIsFlagged() {
	conn := s.connect("")

	s.Require().NoError(s.storage.UpdateRoomStatus(s.ctx, s.roomID, model.RoomStatusWaiting, model.RoomStatusActive))

	msg := s.readUntil(conn, func(m ServerMessage) bool {
		return m.Type == TypeRoom && m.Room.Status == "active"
	})
	s.True(msg.Activated)
}

func (s *ConnSuite) TestUnknownRoomRejected() {
	_, resp, err := s.dial("missing", "")
	s.Require().Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *ConnSuite) TestUnknownUserRejected() {
	_, resp, err := s.dial(s.roomID, "missing")
	s.Require().Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *ConnSuite) TestDisconnectReleasesSubscriptions() {
	conn := s.connect("")
	s.read(conn)
	s.Equal(2, s.storage.SubscriberCount(s.roomID))

	s.Require().NoError(conn.Close())

	s.Eventually(func() bool {
		return s.storage.SubscriberCount(s.roomID) == 0
	}, readTimeout, 10*time.Millisecond)
}
