package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/partytasks/internal/model"
)

func TestWriteErrorMapsSentinels(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty name", model.ErrEmptyName, http.StatusBadRequest, CodeEmptyName},
		{"wrapped invalid code", fmt.Errorf("%w: %q", model.ErrInvalidCode, "A"), http.StatusBadRequest, CodeInvalidCode},
		{"room not found", model.ErrRoomNotFound, http.StatusNotFound, CodeRoomNotFound},
		{"not host", model.ErrNotHost, http.StatusForbidden, CodeNotHost},
		{"not all ready", model.ErrNotAllReady, http.StatusConflict, CodeNotAllReady},
		{"insufficient templates", model.ErrInsufficientTemplates, http.StatusConflict, CodeInsufficientTemplate},
		{"data integrity", model.ErrDataIntegrity, http.StatusInternalServerError, CodeDataIntegrity},
		{
			"partial wins over wrapped cause",
			fmt.Errorf("%w: wrote 1 of 3 users: %w", model.ErrPartialAssignment, model.ErrUserNotFound),
			http.StatusInternalServerError,
			CodePartialAssignment,
		},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
		{"invalid request", NewInvalidRequestError("bad body"), http.StatusBadRequest, CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestUnknownErrorDoesNotLeakMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errors.New("dial tcp 10.0.0.1:6379: connection refused"))
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
}
