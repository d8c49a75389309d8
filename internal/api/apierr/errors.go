package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/partytasks/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeEmptyName            = "EMPTY_NAME"
	CodeNameTooLong          = "NAME_TOO_LONG"
	CodeEmptyCode            = "EMPTY_CODE"
	CodeInvalidCode          = "INVALID_CODE"
	CodeInvalidRole          = "INVALID_ROLE"
	CodeInvalidStatus        = "INVALID_STATUS"
	CodeRoomNotFound         = "ROOM_NOT_FOUND"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeAmbiguousCode        = "AMBIGUOUS_CODE"
	CodeCodeSpaceExhausted   = "CODE_SPACE_EXHAUSTED"
	CodeInvalidTransition    = "INVALID_STATUS_TRANSITION"
	CodeRoomNotJoinable      = "ROOM_NOT_JOINABLE"
	CodeNotHost              = "NOT_HOST"
	CodeNotAllReady          = "NOT_ALL_READY"
	CodeInsufficientPlayers  = "INSUFFICIENT_PLAYERS"
	CodeInsufficientTemplate = "INSUFFICIENT_TEMPLATES"
	CodeInvalidTaskID        = "INVALID_TASK_ID"
	CodeDataIntegrity        = "DATA_INTEGRITY"
	CodeIncompleteAssignment = "INCOMPLETE_ASSIGNMENT"
	CodePartialAssignment    = "PARTIAL_ASSIGNMENT"
	CodeMalformedDocument    = "MALFORMED_DOCUMENT"
	CodeInternalError        = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// FromError returns the status and body an error maps to, for transports
// that report errors outside an HTTP response
func FromError(err error) (int, APIError) {
	he := toHTTPError(err)
	return he.status, he.apiError
}

// mapping is checked in order; the first sentinel matched wins. Partial
// assignment precedes the wrapped store error it carries.
var mapping = []struct {
	err     error
	status  int
	code    string
	message string
}{
	// Input validation
	{model.ErrEmptyName, http.StatusBadRequest, CodeEmptyName, "Name must not be empty"},
	{model.ErrNameTooLong, http.StatusBadRequest, CodeNameTooLong, "Name is too long"},
	{model.ErrEmptyCode, http.StatusBadRequest, CodeEmptyCode, "Room code must not be empty"},
	{model.ErrInvalidCode, http.StatusBadRequest, CodeInvalidCode, "Room code must be 4 letters or digits"},
	{model.ErrInvalidRole, http.StatusBadRequest, CodeInvalidRole, "Role must be host or player"},
	{model.ErrInvalidStatus, http.StatusBadRequest, CodeInvalidStatus, "Status must be waiting or active"},

	// Not found
	{model.ErrRoomNotFound, http.StatusNotFound, CodeRoomNotFound, "Room not found"},
	{model.ErrUserNotFound, http.StatusNotFound, CodeUserNotFound, "User not found"},

	// Conflicts
	{model.ErrAmbiguousCode, http.StatusConflict, CodeAmbiguousCode, "Room code matches more than one room"},
	{model.ErrCodeSpaceExhausted, http.StatusServiceUnavailable, CodeCodeSpaceExhausted, "No free room code, try again"},
	{model.ErrInvalidStatusTransition, http.StatusConflict, CodeInvalidTransition, "Room cannot move to that status"},
	{model.ErrRoomNotJoinable, http.StatusConflict, CodeRoomNotJoinable, "Room has already started"},
	{model.ErrNotHost, http.StatusForbidden, CodeNotHost, "Only the host can perform this action"},
	{model.ErrNotAllReady, http.StatusConflict, CodeNotAllReady, "Not everyone is ready"},

	// Insufficient resources
	{model.ErrInsufficientPlayers, http.StatusConflict, CodeInsufficientPlayers, "At least two players are needed"},
	{model.ErrInsufficientTemplates, http.StatusConflict, CodeInsufficientTemplate, "Not enough tasks for this many players"},

	// Data integrity
	{model.ErrPartialAssignment, http.StatusInternalServerError, CodePartialAssignment, "Tasks were only partially assigned"},
	{model.ErrInvalidTaskID, http.StatusInternalServerError, CodeInvalidTaskID, "Task catalog has a malformed id"},
	{model.ErrDataIntegrity, http.StatusInternalServerError, CodeDataIntegrity, "Task or player data is incomplete"},
	{model.ErrIncompleteAssignment, http.StatusInternalServerError, CodeIncompleteAssignment, "Not every player could be given tasks"},
	{model.ErrMalformedDocument, http.StatusInternalServerError, CodeMalformedDocument, "Stored data is malformed"},
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	for _, m := range mapping {
		if errors.Is(err, m.err) {
			return &httpError{m.status, APIError{m.code, m.message}}
		}
	}
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
