package session

import (
	"context"
	"errors"
	"testing"
)

func TestParseCredential(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr error
		token   string
		userID  int64
	}{
		{name: "empty", raw: "", wantErr: ErrAuthMissing},
		{name: "blank", raw: "   ", wantErr: ErrAuthMissing},
		{name: "no separator", raw: "deadbeef", wantErr: ErrAuthMalformed},
		{name: "empty token", raw: "-5", wantErr: ErrAuthMalformed},
		{name: "empty user id", raw: "deadbeef-", wantErr: ErrAuthMalformed},
		{name: "leading zero id", raw: "deadbeef-007", wantErr: ErrAuthMalformed},
		{name: "non numeric id", raw: "deadbeef-4x2", wantErr: ErrAuthMalformed},
		{name: "valid", raw: "deadbeef-12", token: "deadbeef", userID: 12},
		{name: "zero id", raw: "deadbeef-0", token: "deadbeef", userID: 0},
		{name: "splits on last hyphen", raw: "a-b-7", token: "a-b", userID: 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cred, err := ParseCredential(tc.raw)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ParseCredential(%q) err=%v, want %v", tc.raw, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCredential(%q): %v", tc.raw, err)
			}
			if cred.Token != tc.token || cred.UserID != tc.userID {
				t.Fatalf("ParseCredential(%q)=%+v, want token=%q user=%d", tc.raw, cred, tc.token, tc.userID)
			}
		})
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := UserIDFromContext(ctx); ok {
		t.Fatal("expected no user id in fresh context")
	}
	ctx = ContextWithUserID(ctx, 42)
	id, ok := UserIDFromContext(ctx)
	if !ok || id != 42 {
		t.Fatalf("unexpected user id: %d, ok=%v", id, ok)
	}
}
