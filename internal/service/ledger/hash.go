package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/canonical"
)

// ComputeHash returns hex(SHA-256(prev || canonical(payload))). A nil
// prevHash marks the genesis of a chain and contributes nothing.
func ComputeHash(payload any, prevHash *string) (string, error) {
	body, err := canonical.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}

	h := sha256.New()
	if prevHash != nil {
		h.Write([]byte(*prevHash))
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}
