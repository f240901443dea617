package api

import (
	"encoding/json"
	"net/http"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/coordinator"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

// errorBody is the wire shape of every error response: a short
// human-readable string, matching §7's "short human-readable strings, not
// typed errors" propagation policy.
type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requireAuth rejects anonymous callers before a handler runs, matching
// §4.4's precondition ordering (auth first). It stashes the resolved
// principal on the request context for handlers to read.
func requireAuth(authn Authenticator, log logging.ComponentLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := authn.Authenticate(r)
			if !ok {
				log.Warn("rejected unauthenticated request", map[string]interface{}{"path": r.URL.Path})
				writeError(w, http.StatusUnauthorized, coordinator.ErrAuthenticationRequired.Error())
				return
			}
			next.ServeHTTP(w, WithPrincipalRequest(r, principal))
		})
	}
}

// WithPrincipalRequest returns r with principal attached to its context.
func WithPrincipalRequest(r *http.Request, principal string) *http.Request {
	return r.WithContext(WithPrincipal(r.Context(), principal))
}

// statusForError maps a domain error to the HTTP status callers should see.
// The body always carries the verbatim short error string from §7; this
// only affects the status line.
func statusForError(err error) int {
	switch {
	case err == coordinator.ErrAuthenticationRequired:
		return http.StatusUnauthorized
	case coordinator.IsNotFound(err):
		return http.StatusNotFound
	case coordinator.IsQuotaError(err):
		return http.StatusTooManyRequests
	case err == coordinator.ErrInvalidRequestID, err == coordinator.ErrRequestIDChars:
		return http.StatusBadRequest
	case err == coordinator.ErrDuplicateRequest:
		return http.StatusConflict
	case err == coordinator.ErrNoCapableAgents, err == coordinator.ErrNoSuitableAgents, err == coordinator.ErrAllAgentsFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
