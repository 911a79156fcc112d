package routehandlers

import (
	"net/http"

	"github.com/kfimusic/beatstore/webutil"
)

type HealthHandler struct {
	FrontendURL string
}

func NewHealthHandler(frontendURL string) *HealthHandler {
	return &HealthHandler{FrontendURL: frontendURL}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) error {
	webutil.RespondWithJSON(w, http.StatusOK, map[string]any{"ok": true, "frontend": h.FrontendURL})
	return nil
}
