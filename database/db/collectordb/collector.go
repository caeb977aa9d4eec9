package collectordb

import (
	"errors"
	"strconv"

	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/database/models"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/mcdexio/chain-collector/types"
	"gorm.io/gorm"
)

// SchemaVersion is bumped whenever the models change incompatibly.
const SchemaVersion = 1

var logger = logging.NewLoggerTag("database")

// CollectorDBApp is the database application of the collector.
type CollectorDBApp struct{}

// Models returns the models for a given database app.
func (e *CollectorDBApp) Models() []interface{} {
	return chain.AllModels
}

// IsEmpty check if a given database is empty.
func (e *CollectorDBApp) IsEmpty(db *gorm.DB) bool {
	return !db.Migrator().HasTable(&chain.Block{})
}

// PostReset records the schema version the first time the schema is created.
func (e *CollectorDBApp) PostReset(tx *gorm.DB) error {
	var current models.System
	err := tx.Where("name = ?", types.SysVarSchemaVersion).First(&current).Error
	if err == nil {
		v, _ := strconv.Atoi(current.Value)
		if v != SchemaVersion {
			logger.Warn("schema_version in database is %d, code expects %d", v, SchemaVersion)
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	logger.Info("Initialized DB Schema version to %v.", SchemaVersion)
	return tx.Create(&models.System{Name: types.SysVarSchemaVersion, Value: strconv.Itoa(SchemaVersion)}).Error
}
