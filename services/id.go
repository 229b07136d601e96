package services

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// generateShortID returns a short random identifier: a fresh UUID
// hashed with SHA-256, truncated to length hex characters. Used for
// both player IDs and session codes; uniqueness is enforced by the
// callers with an existence check against the store.
func generateShortID(length int) string {
	sum := sha256.Sum256([]byte(uuid.NewString()))
	return hex.EncodeToString(sum[:])[:length]
}
