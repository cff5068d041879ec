package ui

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scoutgw/internal/ui/assets"
)

// MountRoutes attaches the console under the router's /ui subtree. The
// login pair stays outside the auth group; everything else runs behind the
// cookie bridge plus the shared bearer middleware.
func MountRoutes(r chi.Router, h *Handler, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.LoginSubmit)
	r.Post("/logout", h.Logout)

	staticFS, err := fs.Sub(assets.StaticFS(), "static")
	if err == nil {
		r.Handle("/static/*", http.StripPrefix("/ui/static/", http.FileServer(http.FS(staticFS))))
	}

	r.Group(func(r chi.Router) {
		r.Use(h.CookieHeaderBridge)
		r.Use(authMiddleware)
		r.Get("/", h.Home)
		r.Get("/capabilities", h.Capabilities)
		r.Get("/templates", h.TemplatesList)
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/audit", h.AuditList)
			r.Get("/audit/{executionID}", h.AuditDetail)
		})
	})
}
