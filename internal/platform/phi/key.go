package phi

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// LoadKey resolves the 32-byte encryption key. Precedence: the hex-encoded
// value (normally from ENCRYPTION_KEY), then the key file. When neither
// exists a fresh key is generated and persisted to keyFile so restarts keep
// decrypting previously issued tokens.
func LoadKey(hexKey, keyFile string) ([]byte, error) {
	if hexKey != "" {
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("phi key: decode hex key: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("phi key: key must be 32 bytes (64 hex chars), got %d bytes", len(key))
		}
		return key, nil
	}

	if data, err := os.ReadFile(keyFile); err == nil {
		key, err := hex.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("phi key: decode key file %s: %w", keyFile, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("phi key: key file %s must hold 64 hex chars", keyFile)
		}
		return key, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("phi key: read key file %s: %w", keyFile, err)
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("phi key: generate key: %w", err)
	}
	if err := os.WriteFile(keyFile, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("phi key: persist key file %s: %w", keyFile, err)
	}
	return key, nil
}
