package cryptox

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/dmitrijs2005/promoclaim/internal/filex"
)

// LoadOrCreateKey reads base64 key material from path, generating and
// persisting a fresh random key when the file does not exist yet.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		key := common.GenerateRandByteArray(KeySize)
		enc := base64.StdEncoding.EncodeToString(key)
		if err := filex.WriteFileAtomic(path, []byte(enc), 0o600); err != nil {
			return nil, fmt.Errorf("write key: %w", err)
		}
		return key, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil || len(key) != KeySize {
		return nil, fmt.Errorf("%w: key file %s is invalid", common.ErrDecryption, path)
	}
	return key, nil
}

// KeyFromPassphrase derives the store key from passphrase using a salt kept
// at saltPath (created on first use).
func KeyFromPassphrase(passphrase []byte, saltPath string) ([]byte, error) {
	salt, err := os.ReadFile(saltPath)
	if errors.Is(err, os.ErrNotExist) {
		salt = common.GenerateRandByteArray(16)
		if err := filex.WriteFileAtomic(saltPath, salt, 0o600); err != nil {
			return nil, fmt.Errorf("write salt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	return DeriveKey(passphrase, salt), nil
}
