package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Link token failures.
var (
	ErrLinkMalformed = errors.New("malformed link token")
	ErrLinkSignature = errors.New("invalid link signature")
	ErrLinkExpired   = errors.New("link expired")
)

// LinkSigner issues expiring download tokens bound to a session and an
// archive name.
type LinkSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewLinkSigner constructs a signer. A nil clock defaults to time.Now.
func NewLinkSigner(secret string, ttl time.Duration, now func() time.Time) *LinkSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &LinkSigner{secret: []byte(secret), ttl: ttl, now: now}
}

// Link is the decoded content of a valid token.
type Link struct {
	SessionID string
	Name      string
	ExpiresAt time.Time
}

// Generate returns a token of the form sessionID.expiry.name.signature.
func (s *LinkSigner) Generate(sessionID, name string) (string, time.Time, error) {
	if sessionID == "" || name == "" {
		return "", time.Time{}, fmt.Errorf("session id and name required")
	}
	if strings.Contains(sessionID, ".") {
		return "", time.Time{}, fmt.Errorf("session id must not contain '.'")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedName := base64.RawURLEncoding.EncodeToString([]byte(name))
	token := strings.Join([]string{sessionID, ts, encodedName, s.sign(sessionID, ts, encodedName)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token's signature and expiry.
func (s *LinkSigner) Parse(token string) (Link, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Link{}, ErrLinkMalformed
	}
	sessionID, ts, encodedName, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(sessionID, ts, encodedName)), []byte(signature)) {
		return Link{}, ErrLinkSignature
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Link{}, ErrLinkMalformed
	}
	rawName, err := base64.RawURLEncoding.DecodeString(encodedName)
	if err != nil {
		return Link{}, ErrLinkMalformed
	}
	link := Link{SessionID: sessionID, Name: string(rawName), ExpiresAt: time.Unix(expUnix, 0).UTC()}
	if s.now().After(link.ExpiresAt) {
		return Link{}, ErrLinkExpired
	}
	return link, nil
}

func (s *LinkSigner) sign(sessionID, ts, encodedName string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(sessionID + "|" + ts + "|" + encodedName))
	return hex.EncodeToString(mac.Sum(nil))
}
