package model

import "errors"

// Common errors used across the application
var (
	// Input validation errors
	ErrEmptyName     = errors.New("name must not be empty")
	ErrNameTooLong   = errors.New("name is too long")
	ErrEmptyCode     = errors.New("room code must not be empty")
	ErrInvalidCode   = errors.New("room code is malformed")
	ErrInvalidRole   = errors.New("invalid role")
	ErrInvalidStatus = errors.New("invalid room status")

	// Lookup errors
	ErrRoomNotFound = errors.New("room not found")
	ErrUserNotFound = errors.New("user not found")

	// Room state errors
	ErrAmbiguousCode           = errors.New("room code matches more than one room")
	ErrCodeSpaceExhausted      = errors.New("could not generate an unused room code")
	ErrInvalidStatusTransition = errors.New("invalid room status transition")
	ErrRoomNotJoinable         = errors.New("room has already started")
	ErrNotHost                 = errors.New("user is not the host")
	ErrNotAllReady             = errors.New("not all users are ready")

	// Assignment errors
	ErrInsufficientPlayers   = errors.New("at least two users are required")
	ErrInsufficientTemplates = errors.New("not enough task templates for this room")
	ErrInvalidTaskID         = errors.New("task template id is malformed")
	ErrInvalidTemplate       = errors.New("task template is invalid")
	ErrDataIntegrity         = errors.New("assignment data failed integrity check")
	ErrIncompleteAssignment  = errors.New("not every user received a full set of tasks")
	ErrPartialAssignment     = errors.New("task assignment was only partially written")

	// Storage errors
	ErrMalformedDocument = errors.New("stored document is malformed")
	ErrFeedClosed        = errors.New("change feed closed")
)
