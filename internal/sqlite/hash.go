package sqlite

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/lowercasename/eggcms/pkg/schema"
)

// hashLength is the number of hex characters kept from the digest.
const hashLength = 16

// hashShape is the part of a schema that determines its stored shape.
type hashShape struct {
	Name          string                   `json:"name"`
	Kind          schema.Kind              `json:"kind"`
	Fields        []schema.FieldDefinition `json:"fields"`
	DraftsEnabled bool                     `json:"draftsEnabled"`
}

// HashSchema returns a short, stable content hash of a schema's shape. Equal
// schemas always hash equal; any change to name, kind or fields changes it.
func HashSchema(def *schema.Definition) (string, error) {
	fields := def.Fields
	if fields == nil {
		fields = []schema.FieldDefinition{}
	}
	data, err := json.Marshal(hashShape{
		Name:          def.Name,
		Kind:          def.Kind,
		Fields:        fields,
		DraftsEnabled: def.DraftsEnabled(),
	})
	if err != nil {
		return "", fmt.Errorf("hash schema %s: %w", def.Name, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:hashLength], nil
}
