package upstream

import (
	"strings"

	"github.com/google/uuid"
)

// NewNFID returns a fresh 16 character alphanumeric nonce for a points request
func NewNFID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
