package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/partytasks/internal/dependencies/clock"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	rooms     map[model.RoomID]*roomEntry
	templates map[model.TaskID]*model.TaskTemplate

	clock clock.Clock
	lease time.Duration

	subMu sync.Mutex
	subs  map[model.RoomID]map[*subscription]struct{}
}

type roomEntry struct {
	room      *model.Room
	users     []*model.User // join order
	claimedAt time.Time     // zero when the assignment marker is free
}

// Option configures a Storage
type Option func(*Storage)

// WithAssignmentLease sets how long a claimed assignment marker is held
// before another caller may take it
func WithAssignmentLease(d time.Duration) Option {
	return func(s *Storage) {
		s.lease = d
	}
}

// WithClock sets the clock used to expire assignment markers
func WithClock(c clock.Clock) Option {
	return func(s *Storage) {
		s.clock = c
	}
}

// New creates a new in-memory storage instance
func New(opts ...Option) *Storage {
	s := &Storage{
		rooms:     make(map[model.RoomID]*roomEntry),
		templates: make(map[model.TaskID]*model.TaskTemplate),
		clock:     clock.New(),
		lease:     storage.DefaultAssignmentLease,
		subs:      make(map[model.RoomID]map[*subscription]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room) (model.RoomID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := room.Clone()
	stored.ID = model.RoomID(uuid.NewString())
	s.rooms[stored.ID] = &roomEntry{room: stored}
	return stored.ID, nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return entry.room.Clone(), nil
}

func (s *Storage) FindRoomsByCode(ctx context.Context, code model.RoomCode) ([]*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := []*model.Room{}
	for _, entry := range s.rooms {
		if entry.room.Code == code {
			rooms = append(rooms, entry.room.Clone())
		}
	}
	slices.SortFunc(rooms, func(a, b *model.Room) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return rooms, nil
}

func (s *Storage) UpdateRoomStatus(ctx context.Context, id model.RoomID, from, to model.RoomStatus) error {
	s.mu.Lock()
	entry, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return model.ErrRoomNotFound
	}
	if entry.room.Status != from {
		current := entry.room.Status
		s.mu.Unlock()
		return fmt.Errorf("%w: room is %s, expected %s", model.ErrInvalidStatusTransition, current, from)
	}
	entry.room.Status = to
	s.mu.Unlock()

	s.publish(id, model.ChangeRoom)
	return nil
}

func (s *Storage) SetAssignedTasks(ctx context.Context, id model.RoomID, taskIDs []model.TaskID) error {
	s.mu.Lock()
	entry, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return model.ErrRoomNotFound
	}
	entry.room.AssignedTasks = append([]model.TaskID(nil), taskIDs...)
	s.mu.Unlock()

	s.publish(id, model.ChangeRoom)
	return nil
}

// Assignment marker operations

func (s *Storage) ClaimAssignment(ctx context.Context, id model.RoomID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.rooms[id]
	if !ok {
		return false, model.ErrRoomNotFound
	}
	if s.markerHeld(entry) {
		return false, nil
	}
	entry.claimedAt = s.clock.Now()
	return true, nil
}

func (s *Storage) ReleaseAssignment(ctx context.Context, id model.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.rooms[id]; ok {
		entry.claimedAt = time.Time{}
	}
	return nil
}

// markerHeld reports whether the room's marker is claimed and its lease has
// not run out. Callers hold s.mu.
func (s *Storage) markerHeld(entry *roomEntry) bool {
	if entry.claimedAt.IsZero() {
		return false
	}
	return s.lease <= 0 || s.clock.Now().Sub(entry.claimedAt) < s.lease
}

// User operations

func (s *Storage) AddUser(ctx context.Context, roomID model.RoomID, user *model.User) (model.UserID, error) {
	s.mu.Lock()
	entry, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return "", model.ErrRoomNotFound
	}
	// Nobody joins once a deal has started, even while the room still waits
	if entry.room.IsActive() || s.markerHeld(entry) || anyHasTasks(entry.users) {
		s.mu.Unlock()
		return "", model.ErrRoomNotJoinable
	}
	stored := user.Clone()
	stored.ID = model.UserID(uuid.NewString())
	entry.users = append(entry.users, stored)
	s.mu.Unlock()

	s.publish(roomID, model.ChangeUsers)
	return stored.ID, nil
}

func (s *Storage) GetUsers(ctx context.Context, roomID model.RoomID) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.rooms[roomID]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	users := make([]*model.User, 0, len(entry.users))
	for _, u := range entry.users {
		users = append(users, u.Clone())
	}
	return users, nil
}

func (s *Storage) UpdateUserReady(ctx context.Context, roomID model.RoomID, userID model.UserID, ready bool) error {
	return s.updateUser(roomID, userID, func(u *model.User) {
		u.Ready = ready
	})
}

func (s *Storage) SetUserTasks(ctx context.Context, roomID model.RoomID, userID model.UserID, tasks []model.TaskAssignment) error {
	return s.updateUser(roomID, userID, func(u *model.User) {
		u.Tasks = append([]model.TaskAssignment(nil), tasks...)
	})
}

func (s *Storage) updateUser(roomID model.RoomID, userID model.UserID, apply func(*model.User)) error {
	s.mu.Lock()
	entry, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return model.ErrRoomNotFound
	}
	var user *model.User
	for _, u := range entry.users {
		if u.ID == userID {
			user = u
			break
		}
	}
	if user == nil {
		s.mu.Unlock()
		return model.ErrUserNotFound
	}
	apply(user)
	s.mu.Unlock()

	s.publish(roomID, model.ChangeUsers)
	return nil
}

// Task template operations

func (s *Storage) ListTaskTemplates(ctx context.Context) ([]*model.TaskTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	templates := make([]*model.TaskTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		c := *t
		templates = append(templates, &c)
	}
	slices.SortFunc(templates, compareTemplates)
	return templates, nil
}

func (s *Storage) SaveTaskTemplates(ctx context.Context, templates []*model.TaskTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates = make(map[model.TaskID]*model.TaskTemplate, len(templates))
	for _, t := range templates {
		c := *t
		s.templates[t.ID] = &c
	}
	return nil
}

func anyHasTasks(users []*model.User) bool {
	for _, u := range users {
		if u.HasTasks() {
			return true
		}
	}
	return false
}

func compareTemplates(a, b *model.TaskTemplate) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

// Subscriptions

type subscription struct {
	storage *Storage
	roomID  model.RoomID
	ch      chan model.Change
	done    chan struct{}
	once    sync.Once
}

func (sub *subscription) Changes() <-chan model.Change {
	return sub.ch
}

func (sub *subscription) Close() error {
	sub.once.Do(func() {
		s := sub.storage
		s.subMu.Lock()
		delete(s.subs[sub.roomID], sub)
		if len(s.subs[sub.roomID]) == 0 {
			delete(s.subs, sub.roomID)
		}
		close(sub.ch)
		s.subMu.Unlock()
		close(sub.done)
	})
	return nil
}

func (s *Storage) Subscribe(ctx context.Context, roomID model.RoomID) (storage.Subscription, error) {
	s.mu.RLock()
	_, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return nil, model.ErrRoomNotFound
	}

	sub := &subscription{
		storage: s,
		roomID:  roomID,
		ch:      make(chan model.Change, 1),
		done:    make(chan struct{}),
	}

	s.subMu.Lock()
	if s.subs[roomID] == nil {
		s.subs[roomID] = make(map[*subscription]struct{})
	}
	s.subs[roomID][sub] = struct{}{}
	s.subMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// SubscriberCount returns the number of open subscriptions for a room
func (s *Storage) SubscriberCount(roomID model.RoomID) int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs[roomID])
}

func (s *Storage) publish(roomID model.RoomID, kind model.ChangeKind) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for sub := range s.subs[roomID] {
		storage.Notify(sub.ch, model.Change{RoomID: roomID, Kind: kind})
	}
}
