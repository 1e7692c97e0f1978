package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, expiresAt, err := signer.Generate("payment-42", "payments/proofs/abc.jpg")
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	resourceID, relPath, _, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "payment-42", resourceID)
	require.Equal(t, "payments/proofs/abc.jpg", relPath)
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, _, err := signer.Generate("payment-42", "payments/proofs/abc.jpg")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token + "x")
	require.Error(t, err)

	other := NewSignedURLSigner("other-secret", time.Minute)
	_, _, _, err = other.Parse(token)
	require.Error(t, err)
}

func TestSignedURLRejectsExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", -time.Minute)
	signer.ttl = -time.Minute

	token, _, err := signer.Generate("payment-42", "payments/proofs/abc.jpg")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token)
	require.Error(t, err)
}
