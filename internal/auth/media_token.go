package auth

import (
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// mediaTokenVersion is the only envelope version clients may present.
const mediaTokenVersion = 1

const minMediaKeyLen = 32

// MediaTokenErrorKind is the closed set of media token failures.
type MediaTokenErrorKind int

const (
	MediaTokenMalformed MediaTokenErrorKind = iota
	MediaTokenBadSignature
	MediaTokenUnsupportedVersion
	MediaTokenExpired
	MediaTokenWrongKind
	MediaTokenKeyTooShort
)

func (k MediaTokenErrorKind) String() string {
	switch k {
	case MediaTokenMalformed:
		return "malformed token"
	case MediaTokenBadSignature:
		return "bad signature"
	case MediaTokenUnsupportedVersion:
		return "unsupported version"
	case MediaTokenExpired:
		return "token expired"
	case MediaTokenWrongKind:
		return "wrong token kind"
	case MediaTokenKeyTooShort:
		return "signing key too short"
	default:
		return "unknown"
	}
}

type MediaTokenError struct {
	Kind MediaTokenErrorKind
}

func (e *MediaTokenError) Error() string {
	return fmt.Sprintf("media token: %s", e.Kind)
}

// DownloadClaims authorizes one media object download.
type DownloadClaims struct {
	Kind     string `json:"kind"`
	Hash     string `json:"hash"`
	UserID   int64  `json:"user_id"`
	DeckHash string `json:"deck_hash"`
	Filename string `json:"filename,omitempty"`
	Exp      int64  `json:"exp"`
}

type mediaEnvelope struct {
	Version int            `json:"version"`
	Payload DownloadClaims `json:"payload"`
}

// IssueDownloadToken signs a download grant. The key must be at least 32
// bytes.
func IssueDownloadToken(secret []byte, claims DownloadClaims) (string, error) {
	if len(secret) < minMediaKeyLen {
		return "", &MediaTokenError{Kind: MediaTokenKeyTooShort}
	}
	claims.Kind = "download"
	payloadBytes, err := json.Marshal(mediaEnvelope{Version: mediaTokenVersion, Payload: claims})
	if err != nil {
		return "", fmt.Errorf("marshal download claims: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	return payload + "." + sign(secret, payload), nil
}

// ParseDownloadToken verifies signature, version, kind and expiry.
func ParseDownloadToken(secret []byte, token string) (DownloadClaims, error) {
	if len(secret) < minMediaKeyLen {
		return DownloadClaims{}, &MediaTokenError{Kind: MediaTokenKeyTooShort}
	}
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return DownloadClaims{}, &MediaTokenError{Kind: MediaTokenMalformed}
	}
	if !hmac.Equal([]byte(parts[1]), []byte(sign(secret, parts[0]))) {
		return DownloadClaims{}, &MediaTokenError{Kind: MediaTokenBadSignature}
	}
	decoded, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return DownloadClaims{}, &MediaTokenError{Kind: MediaTokenMalformed}
	}
	var envelope mediaEnvelope
	if err := json.Unmarshal(decoded, &envelope); err != nil {
		return DownloadClaims{}, &MediaTokenError{Kind: MediaTokenMalformed}
	}
	if envelope.Version != mediaTokenVersion {
		return DownloadClaims{}, &MediaTokenError{Kind: MediaTokenUnsupportedVersion}
	}
	if envelope.Payload.Kind != "download" {
		return DownloadClaims{}, &MediaTokenError{Kind: MediaTokenWrongKind}
	}
	if time.Now().Unix() >= envelope.Payload.Exp {
		return DownloadClaims{}, &MediaTokenError{Kind: MediaTokenExpired}
	}
	return envelope.Payload, nil
}
