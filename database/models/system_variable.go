package models

import (
	"github.com/mcdexio/chain-collector/types"
)

// System defines the table to store system variables.
type System struct {
	Base

	ID    int64        `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	Name  types.SysVar `gorm:"column:name;type:varchar(50);not null" json:"name"`
	Value string       `gorm:"column:value;type:varchar(512)" json:"value"`
}

// Indexes returns information to create index.
func (*System) Indexes() []CustomIndex {
	return []CustomIndex{{Name: "name_uniq", Unique: true, Fields: []string{"name"}}}
}
