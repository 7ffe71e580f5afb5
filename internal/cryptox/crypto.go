// Package cryptox seals account secrets at rest with AES-256-GCM.
//
// Ciphertexts are self-contained strings: base64(nonce || sealed). The key is
// either random key material kept next to the data (see LoadOrCreateKey) or
// derived from an operator passphrase with argon2id (see DeriveKey).
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"golang.org/x/crypto/argon2"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// DeriveKey stretches a passphrase into a KeySize key using argon2id.
func DeriveKey(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with key and returns base64(nonce || ciphertext).
// An empty plaintext is valid and still produces a non-empty ciphertext.
func Seal(plaintext, key []byte) (string, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("seal: nonce: %w", err)
	}

	out := aesgcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Any failure (bad encoding, wrong key, tampered data)
// is reported as common.ErrDecryption.
func Open(encoded string, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: key material missing", common.ErrDecryption)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	ns := aesgcm.NonceSize()
	if len(raw) < ns {
		return nil, fmt.Errorf("%w: ciphertext too short", common.ErrDecryption)
	}

	plaintext, err := aesgcm.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return plaintext, nil
}
