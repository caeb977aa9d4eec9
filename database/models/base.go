package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ForeignKeyConstraint defines the required arguments to the AddForeignKey call.
type ForeignKeyConstraint struct {
	Field    string
	Dest     string
	OnDelete string
	OnUpdate string
}

// ForeignKeyConstrainer defines a interface for models that support creating foreign key
// constraints.
type ForeignKeyConstrainer interface {
	ForeignKeyConstraints() []ForeignKeyConstraint
}

// CustomIndex defines index information
type CustomIndex struct {
	Name      string
	Unique    bool
	Fields    []string
	Type      string
	Condition string
}

// CustomIndexer defines a interface for models that decouples creating index from Gorm tag
// functionality
type CustomIndexer interface {
	Indexes() []CustomIndex
}

// Base is the base model for all data model.
type Base struct {
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp with time zone" json:"-"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp with time zone" json:"-"`
}

// Cascade is the usual constraint of a child row on its parent.
func Cascade(field, dest string) ForeignKeyConstraint {
	return ForeignKeyConstraint{Field: field, Dest: dest, OnDelete: "CASCADE", OnUpdate: "CASCADE"}
}

// JSON is a raw json document stored as jsonb.
type JSON json.RawMessage

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(src interface{}) error {
	switch s := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], s...)
	case string:
		*j = JSON(s)
	default:
		return fmt.Errorf("cannot scan %T into JSON", src)
	}
	return nil
}

// MarshalJSON keeps the document inline.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON stores the raw document.
func (j *JSON) UnmarshalJSON(b []byte) error {
	*j = append((*j)[:0], b...)
	return nil
}

// GormDataType is the column type used by AutoMigrate.
func (JSON) GormDataType() string { return "jsonb" }
