package redis

import (
	"fmt"

	"github.com/mcoot/partytasks/internal/model"
)

// Key prefix for all room-related data
const keyPrefix = "partytasks"

// Key generation functions for each entity type

// roomKey returns the Redis key for a Room hash
func roomKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, id)
}

// roomUsersKey returns the Redis key for the ZSET of a room's users, scored by join sequence
func roomUsersKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s:users", keyPrefix, id)
}

// roomSeqKey returns the Redis key for a room's join sequence counter
func roomSeqKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s:seq", keyPrefix, id)
}

// assignmentMarkerKey returns the Redis key for a room's assignment marker
func assignmentMarkerKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s:assignment", keyPrefix, id)
}

// userKey returns the Redis key for a User hash
func userKey(roomID model.RoomID, userID model.UserID) string {
	return fmt.Sprintf("%s:room:%s:user:%s", keyPrefix, roomID, userID)
}

// codeIndexKey returns the Redis key for the code -> room ids index
func codeIndexKey(code model.RoomCode) string {
	return fmt.Sprintf("%s:idx:code:%s", keyPrefix, code)
}

// templatesKey returns the Redis key for the task template catalog hash
func templatesKey() string {
	return fmt.Sprintf("%s:templates", keyPrefix)
}

// roomChannel returns the pub/sub channel for a room's change feed
func roomChannel(id model.RoomID) string {
	return fmt.Sprintf("%s:events:%s", keyPrefix, id)
}
