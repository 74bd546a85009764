// Package primitives provides versioning utilities for saga definitions.
package primitives

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// ComputeVersion computes a deterministic fingerprint for a serializable
// definition layout: the first 8 bytes of SHA256(JSON), hex encoded.
// Map keys are sorted by encoding/json, so equal layouts hash equally.
func ComputeVersion(layout any) string {
	data, err := json.Marshal(layout)
	if err != nil {
		return "invalid"
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash[:8])
}
