package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"fieldgate.org/internal/session"
)

// Paths under these prefixes require a resolved session.
var protectedPrefixes = []string{"/v1/companies"}

func requiresSession(path string) bool {
	for _, p := range protectedPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// withSession gates protected routes behind credential resolution. The
// resolved user id travels in the context; handlers never see the raw
// credential.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requiresSession(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		raw, err := bearerCredential(r.Header.Get("Authorization"))
		if err != nil {
			translateError(w, r, err)
			return
		}
		userID, err := a.sessions.Resolve(r.Context(), raw)
		if err != nil {
			translateError(w, r, err)
			return
		}
		ctx := session.ContextWithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerCredential(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", session.ErrAuthMissing
	}
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", fmt.Errorf("%w: expected Bearer scheme", session.ErrAuthMalformed)
	}
	cred := strings.TrimSpace(header[len(prefix):])
	if cred == "" {
		return "", session.ErrAuthMissing
	}
	return cred, nil
}
