package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func testParams() Argon2Params {
	return Argon2Params{
		Memory:      MinArgon2MemoryKiB,
		Iterations:  1,
		Parallelism: 1,
		SaltLen:     16,
		KeyLen:      32,
	}
}

func TestDeriveKeyIsDeterministicPerSalt(t *testing.T) {
	t.Parallel()

	salt, err := RandomBytes(16)
	require.NoError(t, err)

	first, err := DeriveKeyFromPassphrase([]byte("hunter2"), salt, testParams())
	require.NoError(t, err)
	second, err := DeriveKeyFromPassphrase([]byte("hunter2"), salt, testParams())
	require.NoError(t, err)
	require.Equal(t, first, second)

	otherSalt, err := RandomBytes(16)
	require.NoError(t, err)
	third, err := DeriveKeyFromPassphrase([]byte("hunter2"), otherSalt, testParams())
	require.NoError(t, err)
	require.NotEqual(t, first, third)
}

func TestDeriveKeyRejectsEmptyPassphrase(t *testing.T) {
	t.Parallel()

	salt, err := RandomBytes(16)
	require.NoError(t, err)
	_, err = DeriveKeyFromPassphrase(nil, salt, testParams())
	require.ErrorIs(t, err, ErrInvalidArgon2Params)
}

func TestSealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	key, err := RandomBytes(chacha20poly1305.KeySize)
	require.NoError(t, err)
	nonce, err := RandomBytes(chacha20poly1305.NonceSizeX)
	require.NoError(t, err)
	aad := []byte("etracker.snapshot.v1")

	ciphertext, err := SealXChaCha20Poly1305(key, nonce, []byte("payload"), aad)
	require.NoError(t, err)

	plaintext, err := OpenXChaCha20Poly1305(key, nonce, ciphertext, aad)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), plaintext)
}

func TestOpenDetectsTampering(t *testing.T) {
	t.Parallel()

	key, err := RandomBytes(chacha20poly1305.KeySize)
	require.NoError(t, err)
	nonce, err := RandomBytes(chacha20poly1305.NonceSizeX)
	require.NoError(t, err)

	ciphertext, err := SealXChaCha20Poly1305(key, nonce, []byte("payload"), nil)
	require.NoError(t, err)

	ciphertext[0] ^= 0xff
	_, err = OpenXChaCha20Poly1305(key, nonce, ciphertext, nil)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}
