package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized is returned by authenticators for rejected requests
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator validates incoming requests. Return a non-nil error to reject.
type Authenticator interface {
	Authenticate(r *http.Request) error
}

// StaticTokenAuthenticator accepts a fixed set of bearer tokens
type StaticTokenAuthenticator struct {
	tokens [][]byte
}

// NewStaticTokenAuthenticator creates an authenticator for the given tokens
func NewStaticTokenAuthenticator(tokens []string) *StaticTokenAuthenticator {
	a := &StaticTokenAuthenticator{}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			a.tokens = append(a.tokens, []byte(t))
		}
	}
	return a
}

// Authenticate checks the Authorization header against the known tokens
func (a *StaticTokenAuthenticator) Authenticate(r *http.Request) error {
	token, ok := bearerToken(r)
	if !ok {
		return ErrUnauthorized
	}

	for _, known := range a.tokens {
		if subtle.ConstantTimeCompare(known, []byte(token)) == 1 {
			return nil
		}
	}
	return ErrUnauthorized
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requireAuth rejects requests the authenticator refuses. A nil authenticator
// lets every request through.
func (h *HTTPServer) requireAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.auth == nil {
			handler(w, r)
			return
		}

		if err := h.auth.Authenticate(r); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="meetresume"`)
			h.writeError(w, r, err)
			return
		}

		handler(w, r)
	}
}
