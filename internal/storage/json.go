package storage

import (
	"encoding/json"
	"log/slog"

	"gorm.io/datatypes"
)

// marshalJSON encodes a value into a JSON column, returning nil for empty values.
func marshalJSON(value any) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return datatypes.JSON(raw), nil
}

// unmarshalJSON decodes a JSON column into the provided target.
func unmarshalJSON(data datatypes.JSON, target any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}

// decodeColumn unmarshals one JSON column of a stored row. A corrupt
// column is logged and reported as false so the caller keeps its default.
func decodeColumn(data datatypes.JSON, target any, table, column, identity string) bool {
	if err := unmarshalJSON(data, target); err != nil {
		slog.Warn("failed to decode json column",
			"table", table, "column", column, "user_id", identity, "error", err)
		return false
	}
	return true
}
