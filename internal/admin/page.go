package admin

import (
	"log/slog"
	"net/http"

	"github.com/jurnal-press/jurnal/internal/shared"
	"github.com/jurnal-press/jurnal/internal/view"
)

// Pages renders admin pages with the session's CSRF token and flash.
type Pages struct {
	Templates *view.Engine
	CSRF      *shared.CSRFManager
	Logger    *slog.Logger
}

// Render writes the named page template.
func (p Pages) Render(w http.ResponseWriter, r *http.Request, title, name string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	if p.CSRF != nil && sess != nil {
		csrfToken, _ = p.CSRF.EnsureToken(r.Context(), sess)
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: title, CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	if err := p.Templates.RenderStatus(w, status, name, viewData); err != nil {
		p.logger().Error("render template", slog.String("template", name), slog.Any("error", err))
	}
}

func (p Pages) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
