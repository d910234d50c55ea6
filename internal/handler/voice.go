// Package handler contains the HTTP entry points the telephony provider
// invokes as call events occur.
package handler

import (
	"log/slog"
	"net/http"

	"dispatchline/internal/callflow"
	"dispatchline/internal/httputil"
)

// VoiceHandler maps provider webhook events onto state machine transitions.
// Handlers only talk to the machine, never to the session store directly.
type VoiceHandler struct {
	machine *callflow.Machine
	logger  *slog.Logger
}

// NewVoiceHandler creates a new voice webhook handler.
func NewVoiceHandler(machine *callflow.Machine, logger *slog.Logger) *VoiceHandler {
	return &VoiceHandler{
		machine: machine,
		logger:  logger,
	}
}

// Inbound handles the new/ongoing call signaling event.
// POST /voice
func (h *VoiceHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	callSID := httputil.FormValue(r, "CallSid")
	doc := h.machine.HandleInbound(r.Context(), callSID)
	httputil.RespondTwiML(w, doc)
}

// InboundHint answers GET requests to the inbound webhook with a spoken
// configuration hint, for providers misconfigured to use GET.
// GET /voice
func (h *VoiceHandler) InboundHint(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn("GET request to inbound webhook", "remote", r.RemoteAddr)
	httputil.RespondTwiML(w, h.machine.PostHint())
}

// SpeechResult handles the caller-finished-speaking event.
// POST /voice/process
func (h *VoiceHandler) SpeechResult(w http.ResponseWriter, r *http.Request) {
	callSID := httputil.FormValue(r, "CallSid")
	transcript := httputil.FormValue(r, "SpeechResult")
	confidence := httputil.FormFloat(r, "Confidence", 1.0)

	doc := h.machine.HandleSpeechResult(r.Context(), callSID, transcript, confidence)
	httputil.RespondTwiML(w, doc)
}

// Continue handles the internal redirect issued after filler playback.
// POST /voice/continue
func (h *VoiceHandler) Continue(w http.ResponseWriter, r *http.Request) {
	callSID := httputil.FormValue(r, "CallSid")
	doc := h.machine.HandleContinue(r.Context(), callSID)
	httputil.RespondTwiML(w, doc)
}

// CallEnded handles the call termination notice.
// POST /voice/hangup
func (h *VoiceHandler) CallEnded(w http.ResponseWriter, r *http.Request) {
	callSID := httputil.FormValue(r, "CallSid")
	h.machine.HandleCallEnded(r.Context(), callSID)
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck reports process liveness.
// GET /health
func (h *VoiceHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
