package request

// CreateRoomRequest is the request body for creating a room.
// Name is the host's display name.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// JoinRoomRequest is the request body for joining a known room
type JoinRoomRequest struct {
	Name string `json:"name"`
}

// JoinByCodeRequest is the request body for joining a room by its code
type JoinByCodeRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// UpdateStatusRequest is the request body for changing a room's status
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateReadyRequest is the request body for setting a user's ready flag.
// Ready is a pointer so a missing field can be rejected.
type UpdateReadyRequest struct {
	Ready *bool `json:"ready"`
}

// StartRoundRequest is the request body for starting a round
type StartRoundRequest struct {
	UserID string `json:"user_id"`
}
