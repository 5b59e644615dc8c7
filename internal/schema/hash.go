package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash returns "sha256:" + hex digest of the context content. The
// introspection timestamp and any previously computed hash are excluded,
// so re-introspecting an unchanged database yields the same hash.
func Hash(c *Context) string {
	if c == nil {
		return ""
	}
	content := struct {
		Database      string  `json:"database"`
		Schema        string  `json:"schema,omitempty"`
		Tables        []Table `json:"tables"`
		AugmentedDocs string  `json:"augmented_docs,omitempty"`
	}{c.Database, c.Schema, c.Tables, c.AugmentedDocs}

	// Marshal cannot fail on these plain types.
	data, _ := json.Marshal(content)
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
