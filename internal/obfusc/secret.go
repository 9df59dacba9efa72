package obfusc

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/dsall/regvault/internal/common"
)

const (
	saltLen   = 16
	secretLen = 32
)

// LoadOrCreateSecret returns the per-device obfuscation secret and salt
// stored at path, generating and persisting them on first use. The file is
// created with owner-only permissions.
func LoadOrCreateSecret(path string) (secret, salt []byte, err error) {
	data, err := os.ReadFile(path)
	if err == nil {
		raw, err := hex.DecodeString(string(data))
		if err != nil || len(raw) != saltLen+secretLen {
			return nil, nil, fmt.Errorf("secret file %s is corrupt", path)
		}
		return raw[saltLen:], raw[:saltLen], nil
	}
	if !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("failed to read secret file: %w", err)
	}

	hexStr, err := common.MakeRandHexString(saltLen + secretLen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	if err := os.WriteFile(path, []byte(hexStr), 0o600); err != nil {
		return nil, nil, fmt.Errorf("failed to persist secret: %w", err)
	}
	raw, _ := hex.DecodeString(hexStr)
	return raw[saltLen:], raw[:saltLen], nil
}
