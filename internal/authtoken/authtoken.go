// Package authtoken issues and verifies the bearer tokens this backend
// hands out after a successful login. A token is a base64 encoding of
// "<unix_seconds>.<hex hmac-sha256(secret, unix_seconds)>".
package authtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sinfolonokojo/mt5-backend/internal/apperr"
)

// sign returns the lowercase-hex HMAC-SHA256 of message under key.
func sign(key, message string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issuer issues and verifies tokens against a shared secret and TTL.
type Issuer struct {
	secret string
	ttl    time.Duration
}

// New builds an Issuer.
func New(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl}
}

// Issue mints a new token stamped with the current time.
func (i *Issuer) Issue() string {
	return i.issueAt(time.Now())
}

func (i *Issuer) issueAt(t time.Time) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	sig := sign(i.secret, ts)
	raw := ts + "." + sig
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Verify decodes and checks a token: the signature must match and the
// issuance timestamp must be within the configured TTL of now.
func (i *Issuer) Verify(token string) error {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return apperr.New(apperr.Unauthorised, "malformed token")
	}
	parts := strings.SplitN(string(decoded), ".", 2)
	if len(parts) != 2 {
		return apperr.New(apperr.Unauthorised, "malformed token")
	}
	ts, sig := parts[0], parts[1]

	expected := sign(i.secret, ts)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return apperr.New(apperr.Unauthorised, "invalid token signature")
	}

	issuedUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return apperr.New(apperr.Unauthorised, "malformed token")
	}
	issuedAt := time.Unix(issuedUnix, 0)
	if time.Since(issuedAt) > i.ttl {
		return apperr.New(apperr.Unauthorised, "token expired")
	}
	if issuedAt.After(time.Now().Add(1 * time.Minute)) {
		return apperr.New(apperr.Unauthorised, fmt.Sprintf("token issued in the future: %s", issuedAt))
	}
	return nil
}
