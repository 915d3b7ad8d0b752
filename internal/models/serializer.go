// -----------------------------------------------------------------------
// Serializer - object <-> opaque-string codec for transport and storage
// -----------------------------------------------------------------------

package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Serialize encodes a domain object to an opaque string safe for form
// fields, subprocess argv and the store's data column. The encoding is
// canonical JSON (struct field order, sorted map keys) wrapped in base64url,
// so serialize(deserialize(s)) round-trips byte-for-byte.
func Serialize(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize %T: %w", v, err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Deserialize decodes an opaque string produced by Serialize.
func Deserialize[T any](s string) (*T, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to deserialize %T: %w", v, err)
	}
	return &v, nil
}
