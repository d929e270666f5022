package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLinkSignerGenerateAndParse(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	signer := NewLinkSigner("secret", time.Hour, func() time.Time { return now })

	token, expiresAt, err := signer.Generate("sess-1", "sess-1/receipt.pdf")
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), expiresAt)

	link, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "sess-1", link.SessionID)
	require.Equal(t, "sess-1/receipt.pdf", link.Name)
	require.True(t, expiresAt.Equal(link.ExpiresAt))
}

func TestLinkSignerExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	signer := NewLinkSigner("secret", time.Minute, func() time.Time { return clock })

	token, _, err := signer.Generate("sess-1", "receipt.pdf")
	require.NoError(t, err)

	clock = now.Add(2 * time.Minute)
	_, err = signer.Parse(token)
	require.ErrorIs(t, err, ErrLinkExpired)
}

func TestLinkSignerRejectsTampering(t *testing.T) {
	signer := NewLinkSigner("secret", time.Hour, nil)
	token, _, err := signer.Generate("sess-1", "receipt.pdf")
	require.NoError(t, err)

	other := NewLinkSigner("other-secret", time.Hour, nil)
	_, err = other.Parse(token)
	require.ErrorIs(t, err, ErrLinkSignature)

	_, err = signer.Parse("not-a-token")
	require.ErrorIs(t, err, ErrLinkMalformed)
}

func TestLinkSignerRequiresInput(t *testing.T) {
	signer := NewLinkSigner("", time.Hour, nil)
	_, _, err := signer.Generate("sess-1", "receipt.pdf")
	require.Error(t, err)

	signer = NewLinkSigner("secret", time.Hour, nil)
	_, _, err = signer.Generate("", "receipt.pdf")
	require.Error(t, err)
}
