package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// PayloadSchemaVersion is the current serialization version for job payloads
// and result records. Readers reject newer versions rather than degrade.
const PayloadSchemaVersion = 1

// schemaVersionKey is the payload field carrying the version.
const schemaVersionKey = "schema_version"

// ErrSchemaVersion is returned when a payload carries an unknown version.
var ErrSchemaVersion = errors.New("unsupported payload schema version")

// Payload is an opaque structured record stored as JSON text. It implements
// sql.Scanner and driver.Valuer so it round-trips through a TEXT column.
type Payload map[string]any

// NewPayload builds a payload stamped with the current schema version.
func NewPayload(fields map[string]any) Payload {
	p := Payload{schemaVersionKey: PayloadSchemaVersion}
	for k, v := range fields {
		p[k] = v
	}
	return p
}

// SchemaVersion returns the payload's version, or 0 when absent.
func (p Payload) SchemaVersion() int {
	switch v := p[schemaVersionKey].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// CheckSchema validates the payload's schema version. Unversioned payloads
// are accepted as version 1 for forward compatibility with early writers.
func (p Payload) CheckSchema() error {
	v := p.SchemaVersion()
	if v == 0 || v == PayloadSchemaVersion {
		return nil
	}
	return fmt.Errorf("%w: %d", ErrSchemaVersion, v)
}

// Scan implements the sql.Scanner interface.
func (p *Payload) Scan(value any) error {
	if value == nil {
		*p = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for Payload")
	}

	if len(data) == 0 {
		*p = Payload{}
		return nil
	}

	return json.Unmarshal(data, p)
}

// Value implements the driver.Valuer interface.
func (p Payload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// StringList is a []string stored as a JSON array in a TEXT column.
type StringList []string

// Scan implements the sql.Scanner interface.
func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for StringList")
	}

	if len(data) == 0 {
		*l = StringList{}
		return nil
	}

	return json.Unmarshal(data, l)
}

// Value implements the driver.Valuer interface.
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Contains reports whether the list holds s.
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}
