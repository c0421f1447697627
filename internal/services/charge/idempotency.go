package charge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// InstallmentIdempotencyKey derives the stable key for one logical charge
// attempt. A fresh attempt epoch yields a new key, so a deliberate retry can
// reach the external processor again while any replay of the same epoch
// deduplicates.
func InstallmentIdempotencyKey(installmentID string, attemptEpoch int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", installmentID, attemptEpoch)))
	return hex.EncodeToString(sum[:])
}
