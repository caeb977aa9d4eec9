package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/mcdexio/chain-collector/common/config"
	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/database/db/collectordb"
	"github.com/mcdexio/chain-collector/database/models"
	"github.com/mcdexio/chain-collector/env"
	"github.com/mcdexio/chain-collector/types"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Host specifies the database host.
type Host string

// Host enums.
const (
	Default Host = "default"
)

var logger = logging.NewLoggerTag("database")

var dbMap map[Host]*gorm.DB
var dbMapMutex sync.Mutex

// DBApp is an interface for different database applications.
type DBApp interface {
	// Models returns the models for a given database app, parents first.
	Models() []interface{}

	// IsEmpty check if a given database is empty.
	IsEmpty(db *gorm.DB) bool

	// PostReset is executed after the schema is in place.
	PostReset(db *gorm.DB) error
}

// NewDB opens a postgres connection with the shared naming and pool settings.
func NewDB(args string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(args), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB from gorm db: %w", err)
	}
	sqlDB.SetMaxIdleConns(config.GetInt("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetMaxOpenConns(config.GetInt("DB_MAX_OPEN_CONNS", 50))
	sqlDB.SetConnMaxLifetime(config.GetDuration("DB_CONN_MAX_LIFETIME", 10*time.Minute))
	return db, nil
}

// Initialize dials the configured hosts. It doesn't reset or migrate anything. In CI a fresh
// database named DB_NAME (or test_<nanos>) is created and used instead of the configured one.
func Initialize(extraHosts ...Host) {
	dbMapMutex.Lock()
	defer dbMapMutex.Unlock()

	dbMap = make(map[Host]*gorm.DB)
	for _, host := range append(extraHosts, Default) {
		if _, ok := dbMap[host]; !ok {
			logger.Info("Initializing %s database ...", host)
			dbMap[host] = dialDB(config.GetString("DB_ARGS"))
		}
	}

	if env.IsCI() {
		name := config.GetString("DB_NAME", fmt.Sprintf("test_%v", time.Now().UnixNano()))
		if err := dbMap[Default].Exec("CREATE DATABASE " + name).Error; err != nil {
			logger.Warn("create database: %v", err)
		}
		closeAll()

		req, err := url.Parse(config.GetString("DB_ARGS"))
		if err != nil {
			panic(err)
		}
		req.Path = "/" + name
		logger.Info("Dial to %s", req.Redacted())
		dbMap[Default] = dialDB(req.String())
	}
	logger.Info("Initialize DONE")
}

// Finalize closes every connection.
func Finalize() {
	dbMapMutex.Lock()
	defer dbMapMutex.Unlock()
	closeAll()
}

func closeAll() {
	for key, db := range dbMap {
		sqlDB, err := db.DB()
		if err != nil {
			logger.Warn("failed to get sql db of %s, err=%v", key, err)
			continue
		}
		if err := sqlDB.Close(); err != nil {
			logger.Warn("failed to close db %s, err=%v", key, err)
		}
		delete(dbMap, key)
	}
}

// GetDB returns the database handle, dialing it on first use.
func GetDB() *gorm.DB {
	dbMapMutex.Lock()
	ret := dbMap[Default]
	dbMapMutex.Unlock()
	if ret != nil {
		return ret
	}
	Initialize()

	dbMapMutex.Lock()
	defer dbMapMutex.Unlock()
	if ret = dbMap[Default]; ret == nil {
		panic("gets nil db")
	}
	return ret
}

func dialDB(args string) *gorm.DB {
	db, err := NewDB(args)
	if err != nil {
		logger.Critical(err.Error())
	}
	return db
}

func dbAppFromType(appType types.AppType) DBApp {
	switch appType {
	case types.Collector:
		return &collectordb.CollectorDBApp{}
	}
	panic("undefined application environment")
}

// Reset drops every table of the app when force is set, then migrates.
func Reset(db *gorm.DB, appType types.AppType, force bool) error {
	dbApp := dbAppFromType(appType)
	if !force && !dbApp.IsEmpty(db) {
		return fmt.Errorf("collector database exists, reset aborted")
	}
	logger.Info("Resetting database ...")
	if err := dropAllTables(db, dbApp); err != nil {
		return err
	}
	return Migrate(db, appType)
}

// Migrate creates or updates tables, then adds the custom indices and foreign keys that are not
// there yet. Safe to run on every start.
func Migrate(db *gorm.DB, appType types.AppType) error {
	dbApp := dbAppFromType(appType)

	logger.Info("Creating models ...")
	err := Transaction(db, func(tx *gorm.DB) error {
		for _, model := range dbApp.Models() {
			if err := tx.AutoMigrate(model); err != nil {
				return fmt.Errorf("migrate %T: %w", model, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return Transaction(db, func(tx *gorm.DB) error {
		logger.Info("Creating indices and constraints ...")
		stmt := &gorm.Statement{DB: db}
		for _, model := range dbApp.Models() {
			if err := stmt.Parse(model); err != nil {
				return fmt.Errorf("parse model %T: %w", model, err)
			}
			tableName := stmt.Schema.Table
			if err := CreateCustomIndices(tx, model, tableName); err != nil {
				return err
			}
			if err := CreateForeignKeyConstraintsSelf(tx, model, tableName); err != nil {
				return err
			}
		}
		logger.Info("Running post reset hook ...")
		return dbApp.PostReset(tx)
	})
}

// Transaction runs body in a transaction, rolling back on error or panic. Panics are re-raised
// after the rollback.
func Transaction(db *gorm.DB, body func(*gorm.DB) error, opts ...*sql.TxOptions) (err error) {
	tx := db.Begin(opts...)
	if tx.Error != nil {
		logger.Error("Transaction: Cannot open transaction %s", tx.Error.Error())
		return tx.Error
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("Transaction: rollback due to panic: %v\n%s", recovered, string(debug.Stack()))
			if rbErr := tx.Rollback().Error; rbErr != nil {
				logger.Error("Transaction: rollback failed: %v", rbErr)
			}
			panic(recovered)
		}
		if err != nil {
			logger.Debug("Transaction: rollback due to error: %v", err)
			if rbErr := tx.Rollback().Error; rbErr != nil {
				logger.Error("Transaction: rollback failed: %v", rbErr)
			}
		}
	}()

	if err = body(tx); err != nil {
		return err
	}
	return tx.Commit().Error
}

// CreateCustomIndices creates custom indices if model implements models.CustomIndexer.
func CreateCustomIndices(tx *gorm.DB, model interface{}, tableName string) error {
	m, ok := model.(models.CustomIndexer)
	if !ok {
		return nil
	}
	for _, idx := range m.Indexes() {
		unique, using := "", ""
		if idx.Unique {
			unique = "UNIQUE"
		}
		if idx.Type != "" {
			using = "USING " + idx.Type
		}
		stmt := fmt.Sprintf(`CREATE %s INDEX IF NOT EXISTS %s_%s ON "%s" %s(%s) %s`,
			unique, tableName, idx.Name, tableName, using, strings.Join(idx.Fields, ","), idx.Condition)
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index %s_%s: %w", tableName, idx.Name, err)
		}
	}
	return nil
}

var foreignKeyNameSanitizer = regexp.MustCompile("(_*[^a-zA-Z]+_*|_+)")

func buildForeignKeyName(tableName, field, dest string) string {
	return foreignKeyNameSanitizer.ReplaceAllString(fmt.Sprintf("%s_%s_%s_foreign", tableName, field, dest), "_")
}

// CreateForeignKeyConstraintsSelf adds the constraints of a models.ForeignKeyConstrainer that do
// not exist yet.
func CreateForeignKeyConstraintsSelf(tx *gorm.DB, model interface{}, tableName string) error {
	m, ok := model.(models.ForeignKeyConstrainer)
	if !ok {
		return nil
	}
	for _, c := range m.ForeignKeyConstraints() {
		keyName := buildForeignKeyName(tableName, c.Field, c.Dest)
		var count int64
		if err := tx.Raw("SELECT count(*) FROM pg_constraint WHERE conname = ?", keyName).Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		err := tx.Exec(fmt.Sprintf(`ALTER TABLE IF EXISTS "%s" ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s ON DELETE %s ON UPDATE %s`,
			tableName, keyName, c.Field, c.Dest, c.OnDelete, c.OnUpdate)).Error
		if err != nil {
			return fmt.Errorf("add constraint %s: %w", keyName, err)
		}
	}
	return nil
}

func dropAllTables(db *gorm.DB, dbApp DBApp) error {
	logger.Info("Dropping old tables ...")
	return Transaction(db, func(tx *gorm.DB) error {
		stmt := &gorm.Statement{DB: db}
		for _, model := range dbApp.Models() {
			if err := stmt.Parse(model); err != nil {
				return err
			}
			if stmt.Schema.Table == "system" {
				logger.Info("Skip system table")
				continue
			}
			if err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s" CASCADE`, stmt.Schema.Table)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
