package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/storage"
)

// Hash field names. These match the persisted document shape.
const (
	fieldCode          = "code"
	fieldStatus        = "status"
	fieldCreatedAt     = "createdAt"
	fieldAssignedTasks = "assignedTasks"

	fieldName     = "name"
	fieldRole     = "role"
	fieldReady    = "ready"
	fieldJoinedAt = "joinedAt"
	fieldTasks    = "tasks"
)

// hsetIfExists writes one hash field only if the hash already exists
var hsetIfExists = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// addUserIfJoinable adds a user only while the room waits, its assignment
// marker is free and nobody holds tasks. Returns -1 if the room is missing,
// 0 if it is not joinable and 1 once the user is written.
//
// KEYS: room, marker, roster, user, seq
// ARGV: user key prefix, user id, ttl ms (0 keeps forever), active status, field/value pairs...
var addUserIfJoinable = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
if redis.call("HGET", KEYS[1], "status") == ARGV[4] or redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
for _, id in ipairs(redis.call("ZRANGE", KEYS[3], 0, -1)) do
	local tasks = redis.call("HGET", ARGV[1] .. id, "tasks")
	if tasks and tasks ~= "" and tasks ~= "null" and tasks ~= "[]" then
		return 0
	end
end
local seq = redis.call("INCR", KEYS[5])
redis.call("HSET", KEYS[4], unpack(ARGV, 5))
redis.call("ZADD", KEYS[3], seq, ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[4], ttl)
	redis.call("PEXPIRE", KEYS[3], ttl)
	redis.call("PEXPIRE", KEYS[5], ttl)
end
return 1
`)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a new Redis storage instance
func New(cfg Config, logger *slog.Logger) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, logger *slog.Logger) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "redis")),
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room) (model.RoomID, error) {
	id := model.RoomID(uuid.NewString())
	key := roomKey(id)
	indexKey := codeIndexKey(room.Code)

	fields := map[string]any{
		fieldCode:      string(room.Code),
		fieldStatus:    string(room.Status),
		fieldCreatedAt: room.CreatedAt.Format(time.RFC3339Nano),
	}
	if len(room.AssignedTasks) > 0 {
		data, err := json.Marshal(room.AssignedTasks)
		if err != nil {
			return "", err
		}
		fields[fieldAssignedTasks] = string(data)
	}

	// Room hash and code index are written together
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.SAdd(ctx, indexKey, string(id))
		s.expire(ctx, pipe, key, indexKey)
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	fields, err := s.client.HGetAll(ctx, roomKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, model.ErrRoomNotFound
	}
	return decodeRoom(id, fields)
}

func (s *Storage) FindRoomsByCode(ctx context.Context, code model.RoomCode) ([]*model.Room, error) {
	indexKey := codeIndexKey(code)

	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Room{}, nil
	}

	// Fetch all candidate rooms in one round trip
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, roomKey(model.RoomID(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	rooms := make([]*model.Room, 0, len(ids))
	var dangling []any
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			dangling = append(dangling, ids[i]) // Room has expired
			continue
		}
		room, err := decodeRoom(model.RoomID(ids[i]), fields)
		if err != nil {
			return nil, err
		}
		if room.Code != code {
			continue
		}
		rooms = append(rooms, room)
	}
	if len(dangling) > 0 {
		_ = s.client.SRem(ctx, indexKey, dangling...).Err()
	}

	slices.SortFunc(rooms, func(a, b *model.Room) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return rooms, nil
}

func (s *Storage) UpdateRoomStatus(ctx context.Context, id model.RoomID, from, to model.RoomStatus) error {
	key := roomKey(id)

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldStatus).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrRoomNotFound
			}
			return err
		}
		if model.RoomStatus(current) != from {
			return fmt.Errorf("%w: room is %s, expected %s", model.ErrInvalidStatusTransition, current, from)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldStatus, string(to))
			return nil
		})
		return err
	}

	retries := max(s.cfg.StatusRetries, 1)
	for range retries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue // Key changed while watched
		}
		if err != nil {
			return err
		}
		s.publish(ctx, id, model.ChangeRoom)
		return nil
	}
	return fmt.Errorf("update room status: %w", redis.TxFailedErr)
}

func (s *Storage) SetAssignedTasks(ctx context.Context, id model.RoomID, taskIDs []model.TaskID) error {
	data, err := json.Marshal(taskIDs)
	if err != nil {
		return err
	}
	if err := s.setFieldIfExists(ctx, roomKey(id), fieldAssignedTasks, string(data), model.ErrRoomNotFound); err != nil {
		return err
	}
	s.publish(ctx, id, model.ChangeRoom)
	return nil
}

// Assignment marker operations

func (s *Storage) ClaimAssignment(ctx context.Context, id model.RoomID) (bool, error) {
	if err := s.requireRoom(ctx, id); err != nil {
		return false, err
	}
	return s.client.SetNX(ctx, assignmentMarkerKey(id), "1", s.cfg.MarkerTTL).Result()
}

func (s *Storage) ReleaseAssignment(ctx context.Context, id model.RoomID) error {
	return s.client.Del(ctx, assignmentMarkerKey(id)).Err()
}

// User operations

func (s *Storage) AddUser(ctx context.Context, roomID model.RoomID, user *model.User) (model.UserID, error) {
	id := model.UserID(uuid.NewString())

	args := []any{
		userKey(roomID, ""),
		string(id),
		max(s.cfg.RoomTTL, 0).Milliseconds(),
		string(model.RoomStatusActive),
		fieldName, user.Name,
		fieldRole, string(user.Role),
		fieldReady, strconv.FormatBool(user.Ready),
		fieldJoinedAt, user.JoinedAt.Format(time.RFC3339Nano),
	}
	if len(user.Tasks) > 0 {
		data, err := json.Marshal(user.Tasks)
		if err != nil {
			return "", err
		}
		args = append(args, fieldTasks, string(data))
	}

	// The joinability check and the user, roster and sequence writes are one script
	keys := []string{
		roomKey(roomID),
		assignmentMarkerKey(roomID),
		roomUsersKey(roomID),
		userKey(roomID, id),
		roomSeqKey(roomID),
	}
	result, err := addUserIfJoinable.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return "", err
	}
	switch result {
	case -1:
		return "", model.ErrRoomNotFound
	case 0:
		return "", model.ErrRoomNotJoinable
	}

	s.publish(ctx, roomID, model.ChangeUsers)
	return id, nil
}

func (s *Storage) GetUsers(ctx context.Context, roomID model.RoomID) ([]*model.User, error) {
	pipe := s.client.Pipeline()
	existsCmd := pipe.Exists(ctx, roomKey(roomID))
	idsCmd := pipe.ZRange(ctx, roomUsersKey(roomID), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	if existsCmd.Val() == 0 {
		return nil, model.ErrRoomNotFound
	}

	ids := idsCmd.Val()
	if len(ids) == 0 {
		return []*model.User{}, nil
	}

	pipe = s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, userKey(roomID, model.UserID(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue // User may have expired
		}
		user, err := decodeUser(model.UserID(ids[i]), fields)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Storage) UpdateUserReady(ctx context.Context, roomID model.RoomID, userID model.UserID, ready bool) error {
	err := s.setFieldIfExists(ctx, userKey(roomID, userID), fieldReady, strconv.FormatBool(ready), model.ErrUserNotFound)
	if err != nil {
		return err
	}
	s.publish(ctx, roomID, model.ChangeUsers)
	return nil
}

func (s *Storage) SetUserTasks(ctx context.Context, roomID model.RoomID, userID model.UserID, tasks []model.TaskAssignment) error {
	data, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	if err := s.setFieldIfExists(ctx, userKey(roomID, userID), fieldTasks, string(data), model.ErrUserNotFound); err != nil {
		return err
	}
	s.publish(ctx, roomID, model.ChangeUsers)
	return nil
}

// Task template operations

type templateDocument struct {
	Text string `json:"text"`
}

func (s *Storage) ListTaskTemplates(ctx context.Context) ([]*model.TaskTemplate, error) {
	entries, err := s.client.HGetAll(ctx, templatesKey()).Result()
	if err != nil {
		return nil, err
	}

	templates := make([]*model.TaskTemplate, 0, len(entries))
	for id, raw := range entries {
		var doc templateDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("%w: template %s: %v", model.ErrMalformedDocument, id, err)
		}
		templates = append(templates, &model.TaskTemplate{ID: model.TaskID(id), Text: doc.Text})
	}

	slices.SortFunc(templates, func(a, b *model.TaskTemplate) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return templates, nil
}

func (s *Storage) SaveTaskTemplates(ctx context.Context, templates []*model.TaskTemplate) error {
	key := templatesKey()

	fields := make(map[string]any, len(templates))
	for _, t := range templates {
		data, err := json.Marshal(templateDocument{Text: t.Text})
		if err != nil {
			return err
		}
		fields[string(t.ID)] = string(data)
	}

	// Delete existing catalog and write the new one atomically
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
		return nil
	})
	return err
}

// Subscriptions

type subscription struct {
	roomID model.RoomID
	pubsub *redis.PubSub
	ch     chan model.Change
	done   chan struct{}
	once   sync.Once
}

func (sub *subscription) Changes() <-chan model.Change {
	return sub.ch
}

func (sub *subscription) Close() error {
	var err error
	sub.once.Do(func() {
		close(sub.done)
		err = sub.pubsub.Close()
	})
	return err
}

func (sub *subscription) forward(ctx context.Context, msgs <-chan *redis.Message) {
	defer close(sub.ch)
	for {
		select {
		case <-ctx.Done():
			_ = sub.Close()
			return
		case <-sub.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			storage.Notify(sub.ch, model.Change{RoomID: sub.roomID, Kind: model.ChangeKind(msg.Payload)})
		}
	}
}

func (s *Storage) Subscribe(ctx context.Context, roomID model.RoomID) (storage.Subscription, error) {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}

	pubsub := s.client.Subscribe(ctx, roomChannel(roomID))

	// Wait for the subscription to be confirmed so no later publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &subscription{
		roomID: roomID,
		pubsub: pubsub,
		ch:     make(chan model.Change, 1),
		done:   make(chan struct{}),
	}
	go sub.forward(ctx, pubsub.Channel())
	return sub, nil
}

// Helpers

// publish notifies room subscribers. It runs after the write has landed, so
// a failure is logged rather than reported as a failed write.
func (s *Storage) publish(ctx context.Context, roomID model.RoomID, kind model.ChangeKind) {
	if err := s.client.Publish(ctx, roomChannel(roomID), string(kind)).Err(); err != nil {
		s.logger.Warn("failed to publish room change",
			slog.String("room_id", string(roomID)),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
	}
}

func (s *Storage) requireRoom(ctx context.Context, id model.RoomID) error {
	exists, err := s.client.Exists(ctx, roomKey(id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return model.ErrRoomNotFound
	}
	return nil
}

func (s *Storage) setFieldIfExists(ctx context.Context, key, field, value string, notFound error) error {
	written, err := hsetIfExists.Run(ctx, s.client, []string{key}, field, value).Int()
	if err != nil {
		return err
	}
	if written == 0 {
		return notFound
	}
	return nil
}

func (s *Storage) expire(ctx context.Context, pipe redis.Pipeliner, keys ...string) {
	if s.cfg.RoomTTL <= 0 {
		return
	}
	for _, key := range keys {
		pipe.Expire(ctx, key, s.cfg.RoomTTL)
	}
}

func decodeRoom(id model.RoomID, fields map[string]string) (*model.Room, error) {
	room := &model.Room{
		ID:     id,
		Code:   model.RoomCode(fields[fieldCode]),
		Status: model.RoomStatus(fields[fieldStatus]),
	}
	if v := fields[fieldCreatedAt]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("%w: room %s createdAt: %v", model.ErrMalformedDocument, id, err)
		}
		room.CreatedAt = t
	}
	if v := fields[fieldAssignedTasks]; v != "" {
		if err := json.Unmarshal([]byte(v), &room.AssignedTasks); err != nil {
			return nil, fmt.Errorf("%w: room %s assignedTasks: %v", model.ErrMalformedDocument, id, err)
		}
	}
	if err := room.Validate(); err != nil {
		return nil, err
	}
	return room, nil
}

func decodeUser(id model.UserID, fields map[string]string) (*model.User, error) {
	user := &model.User{
		ID:   id,
		Name: fields[fieldName],
		Role: model.Role(fields[fieldRole]),
	}
	if v := fields[fieldReady]; v != "" {
		ready, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: user %s ready: %v", model.ErrMalformedDocument, id, err)
		}
		user.Ready = ready
	}
	if v := fields[fieldJoinedAt]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("%w: user %s joinedAt: %v", model.ErrMalformedDocument, id, err)
		}
		user.JoinedAt = t
	}
	if v := fields[fieldTasks]; v != "" {
		if err := json.Unmarshal([]byte(v), &user.Tasks); err != nil {
			return nil, fmt.Errorf("%w: user %s tasks: %v", model.ErrMalformedDocument, id, err)
		}
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return user, nil
}
