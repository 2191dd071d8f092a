// Package security encrypts provider credentials at rest with AES-GCM under
// a process-wide key.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

func gcmFromConfig() (cipher.AEAD, error) {
	key, err := base64.StdEncoding.DecodeString(GetConfig().ProviderCRKey)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials key: %w", err)
	}
	return cipher.NewGCM(block)
}

// EncryptString seals the plaintext and returns it base64 encoded with the
// nonce prepended.
func EncryptString(plaintext string) (string, error) {
	gcm, err := gcmFromConfig()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func DecryptString(encoded string) (string, error) {
	gcm, err := gcmFromConfig()
	if err != nil {
		return "", err
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid encrypted credential: %w", err)
	}
	if len(sealed) < gcm.NonceSize() {
		return "", fmt.Errorf("invalid encrypted credential: too short")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(plaintext), nil
}
