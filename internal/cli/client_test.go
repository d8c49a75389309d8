package cli

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case "/api-error":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"ROOM_NOT_FOUND","message":"Room not found"}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")

	var result HealthResult
	require.NoError(t, c.Post("/ok", map[string]string{"a": "b"}, &result))
	assert.Equal(t, "ok", result.Status)

	err := c.Get("/api-error", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ROOM_NOT_FOUND", apiErr.Code)
	assert.Equal(t, "Room not found (ROOM_NOT_FOUND)", apiErr.Error())

	err = c.Get("/other", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502: upstream down")
}

func TestClient_GetRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"ROOM_NOT_FOUND","message":"Room not found"}}`))
			return
		}
		w.Header().Set("X-Join-URL", "http://example.com/join?code=AB12")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	body, header, err := c.GetRaw("/qr")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, body)
	assert.Equal(t, "http://example.com/join?code=AB12", header.Get("X-Join-URL"))

	_, _, err = c.GetRaw("/missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ROOM_NOT_FOUND", apiErr.Code)
}
