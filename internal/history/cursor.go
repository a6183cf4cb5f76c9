package history

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor marks the last run of a page. Runs are listed newest first, keyed
// by (started_at, uuid).
type Cursor struct {
	StartedAt string `json:"started_at"`
	LastID    string `json:"last_id"`
}

// Encode serializes the cursor to an opaque base64 string
func (c Cursor) Encode() (string, error) {
	if c.StartedAt == "" || c.LastID == "" {
		return "", fmt.Errorf("cursor requires a start time and run id")
	}

	jsonData, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}

	return base64.URLEncoding.EncodeToString(jsonData), nil
}

// DecodeCursor deserializes a cursor from an opaque base64 string
func DecodeCursor(encoded string) (Cursor, error) {
	if encoded == "" {
		return Cursor{}, fmt.Errorf("empty cursor string")
	}

	jsonData, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(jsonData, &c); err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor format: %w", err)
	}

	if c.StartedAt == "" {
		return Cursor{}, fmt.Errorf("cursor missing start time")
	}
	if c.LastID == "" {
		return Cursor{}, fmt.Errorf("cursor missing last ID")
	}

	return c, nil
}

// whereClause returns the keyset condition selecting rows after c in
// descending order.
func (c Cursor) whereClause() (string, []any) {
	return "(started_at < ? OR (started_at = ? AND uuid < ?))",
		[]any{c.StartedAt, c.StartedAt, c.LastID}
}
