package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

// PreferencesHandler reads and writes client view preferences.
type PreferencesHandler struct {
	deps Dependencies
}

// NewPreferencesHandler creates a new preferences handler.
func NewPreferencesHandler(deps Dependencies) *PreferencesHandler {
	return &PreferencesHandler{deps: deps}
}

type darkModeRequest struct {
	DarkMode *bool `json:"dark_mode"`
}

type darkModeResponse struct {
	Client   string `json:"client"`
	DarkMode bool   `json:"dark_mode"`
	Theme    string `json:"theme"`
}

// HandleGet handles GET /api/v1/preferences/{client}/dark-mode.
func (h *PreferencesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["client"]
	p, err := h.deps.Preferences(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, darkModeResponse{Client: id, DarkMode: p.DarkMode(), Theme: p.Theme()})
}

// HandlePut handles PUT /api/v1/preferences/{client}/dark-mode with a body of
// {"dark_mode": bool}.
func (h *PreferencesHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["client"]

	var req darkModeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil {
		writeFailure(w, WrapKind("decode preference", ErrBadRequest, err))
		return
	}
	if req.DarkMode == nil {
		writeFailure(w, NewKind("decode preference", ErrBadRequest, "missing dark_mode"))
		return
	}
	if err := h.deps.SetDarkMode(ctx, id, *req.DarkMode); err != nil {
		writeFailure(w, err)
		return
	}
	p, err := h.deps.Preferences(ctx, id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, darkModeResponse{Client: id, DarkMode: p.DarkMode(), Theme: p.Theme()})
}
