package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/partytasks/internal/middleware"
	"github.com/mcoot/partytasks/internal/web/templates/layout"
	"github.com/mcoot/partytasks/internal/web/templates/pages"
)

// Recovery creates panic recovery middleware for the web interface.
// Returns the HTML error page on panic.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, r *http.Request, _ any) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		page := pages.ErrorPage(pages.ErrorData{
			PageData: layout.PageData{Title: "Something went wrong"},
			Message:  "Please try again in a moment.",
		})
		if err := page.Render(r.Context(), w); err != nil {
			logger.Error("failed to render error page", slog.String("error", err.Error()))
		}
	})
}
