// Package incremental decides which documents and index pages a build pass
// must render, by diffing the corpus against the prior BuildState.
package incremental

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Signature identifies everything outside the corpus that shapes rendered
// output. A change in any field invalidates all prior output.
type Signature struct {
	SchemaVersion   int    `json:"schema_version"`
	RendererVersion string `json:"renderer_version"`
	TemplateHash    string `json:"template_hash"`
}

// Hash returns a stable digest of the signature.
func (s Signature) Hash() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal signature: %w", err)
	}
	return HashBytes(data), nil
}

// HashBytes returns the hex SHA-256 digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashParts digests a sequence of strings with unambiguous separators.
func HashParts(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		_, _ = fmt.Fprintf(h, "%d:%s\n", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
