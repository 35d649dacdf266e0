package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenFormat = errors.New("invalid token format")
	ErrTokenSig    = errors.New("invalid token signature")
	ErrTokenExp    = errors.New("token expired")
	ErrTokenClient = errors.New("client id mismatch")
	ErrNoSecret    = errors.New("agent token secret not configured")
)

// IssueAgentToken binds an agent connection to clientID until expUnix.
// Format: base64url(client_id + "." + exp_unix + "." + hex(hmac_sha256(secret, client_id+"."+exp))).
func IssueAgentToken(secret, clientID string, expUnix int64) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	msg := clientID + "." + strconv.FormatInt(expUnix, 10)
	raw := msg + "." + hex.EncodeToString(sign(secret, msg))
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// VerifyAgentToken checks the signature, the bound client id and expiry
// (allowing skewSeconds past exp). It returns the embedded expiry.
func VerifyAgentToken(secret, token, clientID string, now time.Time, skewSeconds int) (int64, error) {
	if secret == "" {
		return 0, ErrNoSecret
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, ErrTokenFormat
	}
	// client ids are UUIDs and never contain '.'
	parts := strings.Split(string(b), ".")
	if len(parts) != 3 {
		return 0, ErrTokenFormat
	}
	cid, expStr, sigHex := parts[0], parts[1], parts[2]
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return 0, ErrTokenFormat
	}
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return 0, ErrTokenFormat
	}
	if !hmac.Equal(sign(secret, cid+"."+expStr), got) {
		return 0, ErrTokenSig
	}
	if cid != clientID {
		return 0, ErrTokenClient
	}
	if now.Unix() > exp+int64(skewSeconds) {
		return 0, ErrTokenExp
	}
	return exp, nil
}

func sign(secret, msg string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
