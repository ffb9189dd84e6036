package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrEmptySecret       = errors.New("encryption secret is empty")
	ErrCiphertextInvalid = errors.New("ciphertext is malformed")
)

// Cipher seals and opens token material with AES-GCM. The 256-bit key is
// derived from the configured secret via HKDF so operators can supply a
// passphrase of any length.
type Cipher struct {
	aead cipher.AEAD
}

func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("ledgerbot token cipher"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, errors.Wrap(err, "deriving cipher key")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "creating cipher block")
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "creating GCM")
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt returns base64(nonce || ciphertext). Encrypting an empty string
// returns an empty string so optional token fields round-trip unchanged.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, "generating nonce")
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.Wrap(ErrCiphertextInvalid, err.Error())
	}

	if len(sealed) < c.aead.NonceSize() {
		return "", ErrCiphertextInvalid
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(ErrCiphertextInvalid, err.Error())
	}

	return string(plaintext), nil
}
