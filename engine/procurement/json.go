package procurement

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a JSON object column. A nil map is stored as NULL.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, fmt.Errorf("marshaling json column: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	data, ok, err := jsonBytes(src)
	if err != nil || !ok {
		*m = nil
		return err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshaling json column: %w", err)
	}
	*m = out
	return nil
}

// StringList is a JSON array-of-strings column. A nil list is stored as NULL.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshaling json column: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	data, ok, err := jsonBytes(src)
	if err != nil || !ok {
		*l = nil
		return err
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshaling json column: %w", err)
	}
	*l = out
	return nil
}

// jsonBytes normalizes what drivers hand to Scan for JSON columns: text,
// bytes, or an already decoded value.
func jsonBytes(src any) ([]byte, bool, error) {
	switch v := src.(type) {
	case nil:
		return nil, false, nil
	case []byte:
		if len(v) == 0 {
			return nil, false, nil
		}
		return v, true, nil
	case string:
		if v == "" {
			return nil, false, nil
		}
		return []byte(v), true, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, false, fmt.Errorf("unsupported json column value %T: %w", src, err)
		}
		return data, true, nil
	}
}
