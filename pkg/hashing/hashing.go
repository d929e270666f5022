// Package hashing derives salted, one-way, fixed-length identifiers for
// sensitive values (institutional emails, student IDs) so that raw PII never
// leaves the process that holds the salt.
//
// Every digest is SHA-256 rendered as 64 lowercase hex characters. The salt is
// loaded once from configuration and must never be logged or returned.
package hashing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// DigestLength is the length of every hex digest produced by this package.
const DigestLength = sha256.Size * 2

// Hasher computes deterministic digests bound to a secret salt.
type Hasher struct {
	salt string
}

// New builds a Hasher for the given salt.
func New(salt string) *Hasher {
	return &Hasher{salt: salt}
}

// String keeps the salt out of fmt and zap output.
func (h *Hasher) String() string {
	return "hashing.Hasher{salt:<redacted>}"
}

// HashIdentifier normalises an email-like identifier (trimmed, lowercased),
// appends the salt and returns the SHA-256 hex digest.
func (h *Hasher) HashIdentifier(value string) string {
	return h.digest(NormalizeIdentifier(value) + h.salt)
}

// HashStudentID digests a numeric student ID. Only surrounding whitespace is
// removed; digits have no case.
func (h *Hasher) HashStudentID(studentID string) string {
	return h.digest(strings.TrimSpace(studentID) + h.salt)
}

// VerifyIdentifier recomputes the digest for value and compares it with
// storedDigest in constant time. Malformed digests never verify.
func (h *Hasher) VerifyIdentifier(value, storedDigest string) bool {
	return verify(h.HashIdentifier(value), storedDigest)
}

// VerifyStudentID is VerifyIdentifier for student IDs.
func (h *Hasher) VerifyStudentID(studentID, storedDigest string) bool {
	return verify(h.HashStudentID(studentID), storedDigest)
}

// CompositeHash combines an email digest and a student ID digest into a single
// registry lookup key.
func (h *Hasher) CompositeHash(emailDigest, studentIDDigest string) string {
	return h.digest(strings.ToLower(emailDigest) + strings.ToLower(studentIDDigest))
}

// ReviewerHash links a review to its author without exposing the wallet.
func (h *Hasher) ReviewerHash(studentWallet, tutorID string) string {
	return h.digest("reviewer|" + studentWallet + "|" + tutorID + "|" + h.salt)
}

// ContentHash fingerprints review content for later integrity checks.
func (h *Hasher) ContentHash(parts ...string) string {
	return h.digest("content|" + strings.Join(parts, "|") + "|" + h.salt)
}

func (h *Hasher) digest(message string) string {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:])
}

// NormalizeIdentifier trims surrounding whitespace and lowercases the value.
func NormalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// IsDigest reports whether value looks like a digest produced by this package.
func IsDigest(value string) bool {
	if len(value) != DigestLength {
		return false
	}
	for _, r := range value {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

func verify(computed, stored string) bool {
	stored = strings.ToLower(strings.TrimSpace(stored))
	if !IsDigest(stored) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1
}
