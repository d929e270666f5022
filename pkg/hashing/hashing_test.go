package hashing

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestHashIdentifierNormalizesCaseAndWhitespace(t *testing.T) {
	h := New("test-salt")

	a := h.HashIdentifier("Student@Wisc.edu")
	b := h.HashIdentifier("student@wisc.edu ")

	assert.Equal(t, a, b)
	assert.Regexp(t, hexDigest, a)
	assert.Len(t, a, DigestLength)
}

func TestHashIdentifierDependsOnSalt(t *testing.T) {
	assert.NotEqual(t, New("one").HashIdentifier("a@wisc.edu"), New("two").HashIdentifier("a@wisc.edu"))
}

func TestHashIdentifierFixedLength(t *testing.T) {
	h := New("salt")
	long := strings.Repeat("x", 10_000) + "@wisc.edu"
	assert.Len(t, h.HashIdentifier(long), DigestLength)
	assert.Len(t, h.HashIdentifier(""), DigestLength)
}

func TestVerifyIdentifier(t *testing.T) {
	h := New("salt")
	stored := h.HashIdentifier("bucky@wisc.edu")

	assert.True(t, h.VerifyIdentifier("  BUCKY@wisc.edu", stored))
	assert.True(t, h.VerifyIdentifier("bucky@wisc.edu", strings.ToUpper(stored)))
	assert.False(t, h.VerifyIdentifier("bucky@wisc.ed", stored))
	assert.False(t, h.VerifyIdentifier("bucky1@wisc.edu", stored))
	assert.False(t, h.VerifyIdentifier("bucky@wisc.edu", stored[:63]))
	assert.False(t, h.VerifyIdentifier("bucky@wisc.edu", ""))
}

func TestStudentIDHashing(t *testing.T) {
	h := New("salt")
	stored := h.HashStudentID("9081234567")

	require.Regexp(t, hexDigest, stored)
	assert.True(t, h.VerifyStudentID(" 9081234567 ", stored))
	assert.False(t, h.VerifyStudentID("9081234568", stored))
}

func TestCompositeHashIsDeterministic(t *testing.T) {
	h := New("salt")
	email := h.HashIdentifier("bucky@wisc.edu")
	sid := h.HashStudentID("9081234567")

	first := h.CompositeHash(email, sid)
	assert.Equal(t, first, h.CompositeHash(email, sid))
	assert.NotEqual(t, first, h.CompositeHash(sid, email))
	assert.Regexp(t, hexDigest, first)
}

func TestReviewHashes(t *testing.T) {
	h := New("salt")
	assert.Equal(t, h.ReviewerHash("wallet", "tutor-1"), h.ReviewerHash("wallet", "tutor-1"))
	assert.NotEqual(t, h.ReviewerHash("wallet", "tutor-1"), h.ReviewerHash("wallet", "tutor-2"))
	assert.NotEqual(t, h.ContentHash("a", "b"), h.ContentHash("a", "c"))
}

func TestHasherDoesNotLeakSalt(t *testing.T) {
	h := New("super-secret-salt")
	assert.NotContains(t, fmt.Sprint(h), "super-secret-salt")
	assert.NotContains(t, fmt.Sprintf("%v", h), "super-secret-salt")
}
