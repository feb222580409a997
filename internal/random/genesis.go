// Package random provides entropy helpers for tools that drive simulated
// chains. A simulated chain is fully deterministic once its genesis tag is
// fixed; these helpers mint fresh tags when the caller does not pin one.
package random

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewGenesis returns a random 16-character hex genesis tag.
func NewGenesis() (string, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return "", fmt.Errorf("read genesis entropy: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
