package handler

import (
	"net/http"

	"dispatchline/internal/httputil"
	"dispatchline/internal/session"
)

// DebugHandler exposes read-only session inspection for development.
// Registered only when the environment is dev.
type DebugHandler struct {
	sessions *session.Store
}

// NewDebugHandler creates a debug handler over the live session store.
func NewDebugHandler(sessions *session.Store) *DebugHandler {
	return &DebugHandler{sessions: sessions}
}

// ListCalls returns snapshots of every active session.
// GET /debug/api/calls
func (h *DebugHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.sessions.List())
}

// GetCall returns one session snapshot.
// GET /debug/api/calls/{sid}
func (h *DebugHandler) GetCall(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	if sid == "" {
		httputil.RespondError(w, http.StatusBadRequest, "call SID is required")
		return
	}

	snap, ok := h.sessions.Snapshot(sid)
	if !ok {
		httputil.RespondError(w, http.StatusNotFound, "no active session for call")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, snap)
}
