package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

// CookieName carries the signed session token. The raw token never reaches
// the client: the cookie value is "<token>.<signature>".
const CookieName = "taskgate.session_token"

var errTokenFormat = errors.New("invalid token format")

// SignToken appends an HMAC-SHA256 signature to a session token.
func SignToken(token, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(token))
	return token + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyToken checks the signature of a signed token and returns the bare
// token on success.
func VerifyToken(signed, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required")
	}
	idx := strings.LastIndexByte(signed, '.')
	if idx <= 0 || idx == len(signed)-1 {
		return "", errTokenFormat
	}
	token := signed[:idx]
	sig, err := base64.RawURLEncoding.DecodeString(signed[idx+1:])
	if err != nil {
		return "", errTokenFormat
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(token))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return "", errors.New("signature mismatch")
	}
	return token, nil
}

// TokenFromHeader extracts the signed session token from the session cookie
// or, failing that, from a bearer Authorization header. Returns "" when the
// request carries no credential.
func TokenFromHeader(header http.Header) string {
	for _, line := range header.Values("Cookie") {
		for _, part := range strings.Split(line, ";") {
			kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
			if len(kv) == 2 && kv[0] == CookieName && kv[1] != "" {
				return kv[1]
			}
		}
	}
	raw := strings.TrimSpace(header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[len("Bearer "):])
	}
	return ""
}
