package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func TestIssueAndParseToken(t *testing.T) {
	claims := Claims{Sub: "42", Name: "zoe", Role: "maintainer", JTI: "jti-1", Exp: time.Now().Add(time.Hour).Unix()}
	token, err := IssueToken(secret, claims)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.Contains(token, ".") {
		t.Fatalf("token %q has no separator", token)
	}
	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != claims {
		t.Fatalf("claims = %+v, want %+v", parsed, claims)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	claims := Claims{Sub: "42", Name: "zoe", Role: "user", JTI: "jti-1", Exp: time.Now().Add(time.Hour).Unix()}
	token, _ := IssueToken(secret, claims)

	tests := []struct {
		name  string
		token string
	}{
		{"no separator", strings.ReplaceAll(token, ".", "")},
		{"flipped payload", "x" + token},
		{"wrong key", mustIssue(t, []byte("ffffffffffffffffffffffffffffffff"), claims)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(secret, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func mustIssue(t *testing.T, key []byte, claims Claims) string {
	t.Helper()
	token, err := IssueToken(key, claims)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

func TestParseTokenExpiry(t *testing.T) {
	claims := Claims{Sub: "42", Name: "zoe", Role: "user", JTI: "jti-1", Exp: time.Now().Add(-time.Minute).Unix()}
	token, _ := IssueToken(secret, claims)
	if _, err := ParseToken(secret, token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("err = %v, want ErrExpiredToken", err)
	}
}

func TestDownloadTokenRoundTrip(t *testing.T) {
	claims := DownloadClaims{
		Hash:     "abc123",
		UserID:   42,
		DeckHash: "deck-hash",
		Filename: "diagram.png",
		Exp:      time.Now().Add(time.Hour).Unix(),
	}
	token, err := IssueDownloadToken(secret, claims)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parsed, err := ParseDownloadToken(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Kind != "download" || parsed.Hash != "abc123" || parsed.UserID != 42 || parsed.Filename != "diagram.png" {
		t.Fatalf("claims = %+v", parsed)
	}
}

func TestDownloadTokenFailures(t *testing.T) {
	valid := DownloadClaims{Hash: "abc", UserID: 1, DeckHash: "d", Exp: time.Now().Add(time.Hour).Unix()}
	token, _ := IssueDownloadToken(secret, valid)

	expired := valid
	expired.Exp = time.Now().Add(-time.Minute).Unix()
	expiredToken, _ := IssueDownloadToken(secret, expired)

	tests := []struct {
		name  string
		token string
		kind  MediaTokenErrorKind
	}{
		{"garbage", "not-a-token", MediaTokenMalformed},
		{"tampered", token + "x", MediaTokenBadSignature},
		{"expired", expiredToken, MediaTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDownloadToken(secret, tt.token)
			var mte *MediaTokenError
			if !errors.As(err, &mte) {
				t.Fatalf("err = %v, want MediaTokenError", err)
			}
			if mte.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v", mte.Kind, tt.kind)
			}
		})
	}
}

func TestDownloadTokenShortKey(t *testing.T) {
	if _, err := IssueDownloadToken([]byte("short"), DownloadClaims{Exp: time.Now().Add(time.Hour).Unix()}); err == nil {
		t.Fatal("short key accepted")
	}
}
