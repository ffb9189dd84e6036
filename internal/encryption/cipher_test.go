package encryption_test

import (
	"testing"

	"github.com/hiltonbrown/ledgerbot/internal/encryption"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := encryption.New("a passphrase of any length works")
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("xero-refresh-token-value")
	require.NoError(t, err)
	require.NotEqual(t, "xero-refresh-token-value", ciphertext)

	plaintext, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, "xero-refresh-token-value", plaintext)
}

func TestCipherEmptyValuesRoundTrip(t *testing.T) {
	c, err := encryption.New("secret")
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("")
	require.NoError(t, err)
	require.Empty(t, ciphertext)

	plaintext, err := c.Decrypt("")
	require.NoError(t, err)
	require.Empty(t, plaintext)
}

func TestCipherRejectsEmptySecret(t *testing.T) {
	_, err := encryption.New("")
	require.ErrorIs(t, err, encryption.ErrEmptySecret)
}

func TestCipherRejectsTamperedCiphertext(t *testing.T) {
	c, err := encryption.New("secret")
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("payload")
	require.NoError(t, err)

	_, err = c.Decrypt("!" + ciphertext)
	require.ErrorIs(t, err, encryption.ErrCiphertextInvalid)

	_, err = c.Decrypt("c2hvcnQ=")
	require.ErrorIs(t, err, encryption.ErrCiphertextInvalid)
}

func TestCipherDifferentSecretsCannotDecrypt(t *testing.T) {
	a, err := encryption.New("secret-a")
	require.NoError(t, err)
	b, err := encryption.New("secret-b")
	require.NoError(t, err)

	ciphertext, err := a.Encrypt("payload")
	require.NoError(t, err)

	_, err = b.Decrypt(ciphertext)
	require.ErrorIs(t, err, encryption.ErrCiphertextInvalid)
}
