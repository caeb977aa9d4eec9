package coins

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Value stores a DenomMap as jsonb.
func (m DenomMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

// Scan reads a jsonb DenomMap.
func (m *DenomMap) Scan(src interface{}) error {
	*m = DenomMap{}
	return scanJSON(src, m)
}

// GormDataType is the column type used by AutoMigrate.
func (DenomMap) GormDataType() string { return "jsonb" }

// Value stores a ValDenomMap as jsonb.
func (v ValDenomMap) Value() (driver.Value, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	return string(b), err
}

// Scan reads a jsonb ValDenomMap.
func (v *ValDenomMap) Scan(src interface{}) error {
	*v = ValDenomMap{}
	return scanJSON(src, v)
}

// GormDataType is the column type used by AutoMigrate.
func (ValDenomMap) GormDataType() string { return "jsonb" }

func scanJSON(src interface{}, dst interface{}) error {
	var b []byte
	switch s := src.(type) {
	case nil:
		return nil
	case []byte:
		b = s
	case string:
		b = []byte(s)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dst)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
