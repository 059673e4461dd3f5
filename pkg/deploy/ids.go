package deploy

import (
	"crypto/rand"
	"encoding/hex"
)

// newDeploymentID returns a short random deployment id (spec.md §3,
// "id (short random)").
func newDeploymentID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "dep-fallback"
	}
	return "dep-" + hex.EncodeToString(buf)
}
