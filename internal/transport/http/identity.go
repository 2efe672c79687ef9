package http

import (
	"net/http"
	"strings"
)

// The identity provider in front of this service authenticates the caller and
// injects their id. An empty header means the request never passed through it.
const userIDHeader = "X-User-Id"

func callerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}

// requireCaller writes a 401 and returns "" when no authenticated caller id
// is present.
func requireCaller(w http.ResponseWriter, r *http.Request) string {
	id := callerID(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
	}
	return id
}
