package httputil

import (
	"encoding/json"
	"net/http"

	"dispatchline/internal/twiml"
)

// RespondTwiML writes a voice-control document. The provider always gets a
// 200 with a well-formed document; failure semantics live inside the
// document itself (spoken apology, hangup), never in the status code.
func RespondTwiML(w http.ResponseWriter, doc *twiml.Response) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc.Render()))
}

// RespondJSON writes a JSON response with the given status code. It
// marshals first so an encoding failure cannot produce a partial body after
// headers are sent.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// RespondError writes a JSON error response. Used only on the debug API;
// webhook endpoints answer with TwiML regardless of outcome.
func RespondError(w http.ResponseWriter, status int, detail string) {
	payload, err := json.Marshal(map[string]interface{}{
		"error":  detail,
		"status": status,
	})
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
