package session

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrAuthMissing indicates no credential accompanied the request.
	ErrAuthMissing = errors.New("session: credential missing")
	// ErrAuthMalformed indicates the credential does not decompose into a
	// (token, user id) pair.
	ErrAuthMalformed = errors.New("session: credential malformed")
	// ErrAuthInvalid indicates no live credential row matches the pair.
	ErrAuthInvalid = errors.New("session: credential invalid")

	ErrInvalidCredentials = errors.New("session: invalid email or password")
	ErrInvalidInput       = errors.New("session: invalid input")
	ErrConflict           = errors.New("session: email already registered")
)

// Credential is a decomposed bearer value: an opaque token bound to a user id.
type Credential struct {
	Token  string
	UserID int64
}

// ParseCredential splits the raw bearer value on its last hyphen. Tokens are
// hex strings and never contain '-', the trailing part is the numeric user id.
// Both parts must be non-empty before any storage lookup happens.
func ParseCredential(raw string) (Credential, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Credential{}, ErrAuthMissing
	}
	i := strings.LastIndexByte(raw, '-')
	if i <= 0 || i == len(raw)-1 {
		return Credential{}, ErrAuthMalformed
	}
	id, err := parseUserID(raw[i+1:])
	if err != nil {
		return Credential{}, ErrAuthMalformed
	}
	return Credential{Token: raw[:i], UserID: id}, nil
}

// parseUserID accepts only the canonical decimal form: digits, no sign, no
// leading zeros beyond "0" itself.
func parseUserID(raw string) (int64, error) {
	if raw == "" {
		return 0, ErrAuthMalformed
	}
	if len(raw) > 1 && raw[0] == '0' {
		return 0, ErrAuthMalformed
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, ErrAuthMalformed
		}
	}
	return strconv.ParseInt(raw, 10, 64)
}

type userIDContextKey struct{}

// ContextWithUserID attaches the resolved user id to the context.
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext extracts the authenticated user id from the context.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	v, ok := ctx.Value(userIDContextKey{}).(int64)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}
