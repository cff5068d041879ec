package api

import (
	"net/http"

	"scoutgw/internal/service/template"
)

// Capabilities handles GET /v1/capabilities. The dashboard renders this
// into its query builder; it is the same help block rejections carry.
func (h *Handler) Capabilities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.gateway.Capabilities())
}

type templatesResponse struct {
	Templates []template.Definition `json:"templates"`
}

// Templates handles GET /v1/templates, listing the named query templates
// the submit surface accepts. An empty list means the surface is disabled.
func (h *Handler) Templates(w http.ResponseWriter, _ *http.Request) {
	resp := templatesResponse{Templates: []template.Definition{}}
	if h.templates != nil {
		resp.Templates = h.templates.List()
	}
	writeJSON(w, http.StatusOK, resp)
}
