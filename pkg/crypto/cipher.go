// Package crypto encrypts credential payloads before they reach storage.
//
// Values are encrypted with AES-256-CBC using a key derived from the
// configured secret and serialized as "hex(iv):base64(ciphertext)".
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/kodustech/mcp-manager/pkg/errors"
)

// Cipher encrypts and decrypts strings with a fixed key.
// It is safe for concurrent use.
type Cipher struct {
	key []byte
}

// NewCipher derives a 32-byte AES key from secret via SHA-256.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.NewConfigError("encryption secret is not configured", nil)
	}

	key := sha256.Sum256([]byte(secret))
	return &Cipher{key: key[:]}, nil
}

// Encrypt encrypts plaintext with a fresh random IV and returns
// "hex(iv):base64(ciphertext)". Encrypting the same plaintext twice
// yields different outputs.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.NewInternalError("failed to initialize cipher", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", errors.NewInternalError("failed to generate IV", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return fmt.Sprintf("%s:%s", hex.EncodeToString(iv), base64.StdEncoding.EncodeToString(ciphertext)), nil
}

// Decrypt reverses Encrypt. Any malformed input, wrong key, or padding
// problem yields the same generic decryption error so callers cannot
// distinguish failure modes.
func (c *Cipher) Decrypt(encrypted string) (string, error) {
	parts := strings.Split(encrypted, ":")
	if len(parts) != 2 {
		return "", decryptionError()
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", decryptionError()
	}

	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", decryptionError()
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", decryptionError()
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", decryptionError()
	}

	return string(unpadded), nil
}

func decryptionError() error {
	return errors.NewDecryptionError("failed to decrypt data", nil)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
