package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"

	"github.com/mcoot/partytasks/internal/api/response"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/services/lifecycle"
)

// qrSize is the PNG edge length in pixels, sized for phone screens
const qrSize = 320

// QRHandler serves QR codes that encode a room's join link
type QRHandler struct {
	lifecycle *lifecycle.Manager
	publicURL string
}

// NewQRHandler creates a QR handler. If publicURL is empty the link is
// derived from the request.
func NewQRHandler(lc *lifecycle.Manager, publicURL string) *QRHandler {
	return &QRHandler{
		lifecycle: lc,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// Get handles GET /api/v1/rooms/{room_id}/qr
func (h *QRHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["room_id"])

	room, err := h.lifecycle.GetRoom(r.Context(), roomID)
	if err != nil {
		WriteError(w, err)
		return
	}

	link := h.baseURL(r) + "/join?code=" + url.QueryEscape(string(room.Code))
	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.PNG(w, png, map[string]string{"X-Join-URL": link})
}

// baseURL respects TLS and X-Forwarded-Proto when no public URL is set
func (h *QRHandler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
