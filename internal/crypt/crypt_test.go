package crypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()

	c, err := New("test-secret-key")
	require.NoError(t, err)
	return c
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	inputs := []string{
		"hunter2",
		"0x38d55ff1195c57b9dbc8a72c93119500f1fcd47a33f98149faa18d2fc37932fa",
		"per aspera ad astra — ünïcödé ☃ 日本語",
		strings.Repeat("long-secret/", 4096),
		" ",
	}

	for _, in := range inputs {
		token, err := c.Encrypt(in)
		require.NoError(t, err)
		require.NotEqual(t, in, token)

		out, err := c.Decrypt(token)
		require.NoError(t, err)
		require.Equal(t, in, out)
	}
}

func TestEmptyStringIdentity(t *testing.T) {
	c := newTestCipher(t)

	token, err := c.Encrypt("")
	require.NoError(t, err)
	require.Equal(t, "", token)

	out, err := c.Decrypt("")
	require.NoError(t, err)
	require.Equal(t, "", out)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Encrypt("value")
	require.NoError(t, err)
	b, err := c.Encrypt("value")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	c := newTestCipher(t)

	for _, token := range []string{
		"not a token",
		"AAAA",
		"dGhpcyBpcyBub3QgYSB0b2tlbg", // valid base64, not a token
		strings.Repeat("Zg", 64),
	} {
		_, err := c.Decrypt(token)
		require.ErrorIs(t, err, ErrDecryption, "token %q", token)
	}
}

func TestDecryptRejectsTamperedToken(t *testing.T) {
	c := newTestCipher(t)

	token, err := c.Encrypt("payload")
	require.NoError(t, err)

	flipped := []byte(token)
	last := len(flipped) - 1
	if flipped[last] == 'A' {
		flipped[last] = 'B'
	} else {
		flipped[last] = 'A'
	}

	_, err = c.Decrypt(string(flipped))
	require.ErrorIs(t, err, ErrDecryption)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	a, err := New("key-one")
	require.NoError(t, err)
	b, err := New("key-two")
	require.NoError(t, err)

	token, err := a.Encrypt("payload")
	require.NoError(t, err)

	_, err = b.Decrypt(token)
	require.ErrorIs(t, err, ErrDecryption)
}

func TestSameSecretSharesKey(t *testing.T) {
	a, err := New("shared")
	require.NoError(t, err)
	b, err := New("shared")
	require.NoError(t, err)

	token, err := a.Encrypt("payload")
	require.NoError(t, err)

	out, err := b.Decrypt(token)
	require.NoError(t, err)
	require.Equal(t, "payload", out)
}
