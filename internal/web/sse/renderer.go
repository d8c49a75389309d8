package sse

import (
	"bytes"
	"context"

	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/web/templates/components"
)

// Renderer converts room snapshots to HTML fragments for SSE
type Renderer struct{}

// NewRenderer creates a new Renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderRoster renders the roster component as HTML
func (r *Renderer) RenderRoster(ctx context.Context, users []*model.User) (string, error) {
	var buf bytes.Buffer
	err := components.RosterList(users).Render(ctx, &buf)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WrapForOOBSwap wraps HTML in a div with hx-swap-oob for out-of-band swaps
func WrapForOOBSwap(id, html string) string {
	return `<div id="` + id + `" hx-swap-oob="true">` + html + `</div>`
}
