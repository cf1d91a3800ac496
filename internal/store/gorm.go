package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/locshare/locshare/pkg/core"
)

// LocationRow is the persisted form of a published record. One row per key;
// publishes upsert, removes delete.
type LocationRow struct {
	ID         uint   `gorm:"primarykey"`
	Key        string `gorm:"uniqueIndex"`
	Namespace  string `gorm:"index"`
	Identifier string
	Latitude   float64
	Longitude  float64
	Timestamp  int64
	// Optional fields (accuracy today) as a JSON blob so schema changes
	// don't require a migration.
	Attrs     datatypes.JSON
	UpdatedAt time.Time
}

type rowAttrs struct {
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// Gorm persists location records through a gorm-managed database, either a
// local SQLite file or a shared Postgres instance.
type Gorm struct {
	db   *gorm.DB
	open func() (*gorm.DB, error)
}

// NewGormSQLite creates a backend over a local SQLite file. An empty path
// uses a shared in-memory database.
func NewGormSQLite(path string) *Gorm {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	return &Gorm{
		open: func() (*gorm.DB, error) {
			return gorm.Open(sqlite.Open(path), &gorm.Config{
				PrepareStmt:            true,
				SkipDefaultTransaction: true,
				CreateBatchSize:        2000,
				Logger:                 logger.Default.LogMode(logger.Silent),
			})
		},
	}
}

// NewGormPostgres creates a backend over a shared Postgres database.
func NewGormPostgres(dsn string) *Gorm {
	return &Gorm{
		open: func() (*gorm.DB, error) {
			return gorm.Open(postgres.New(postgres.Config{
				DSN:                  dsn,
				PreferSimpleProtocol: true, // disables implicit prepared statement usage
			}), &gorm.Config{
				SkipDefaultTransaction: true,
				CreateBatchSize:        2000,
				Logger:                 logger.Default.LogMode(logger.Silent),
			})
		},
	}
}

// Init connects and migrates the schema.
func (g *Gorm) Init() error {
	db, err := g.open()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&LocationRow{}); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	g.db = db
	return nil
}

func (g *Gorm) Close() error {
	if g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *Gorm) SaveRecord(key string, rec core.LocationRecord) error {
	ns, id, err := ParseKey(key)
	if err != nil {
		return err
	}

	attrs, err := json.Marshal(rowAttrs{Accuracy: rec.Accuracy})
	if err != nil {
		return fmt.Errorf("marshal attrs: %w", err)
	}

	row := LocationRow{
		Key:        key,
		Namespace:  ns,
		Identifier: string(id),
		Latitude:   rec.Latitude,
		Longitude:  rec.Longitude,
		Timestamp:  rec.Timestamp,
		Attrs:      attrs,
	}

	return g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (g *Gorm) DeleteRecord(key string) error {
	return g.db.Where("key = ?", key).Delete(&LocationRow{}).Error
}

func (g *Gorm) LoadSnapshot(namespace string) (core.Snapshot, error) {
	var rows []LocationRow
	err := g.db.Where("namespace = ?", namespace).Find(&rows).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	snap := make(core.Snapshot, len(rows))
	for _, row := range rows {
		rec := core.LocationRecord{
			Identifier: core.Identifier(row.Identifier),
			Latitude:   row.Latitude,
			Longitude:  row.Longitude,
			Timestamp:  row.Timestamp,
		}
		if len(row.Attrs) > 0 {
			var attrs rowAttrs
			if err := json.Unmarshal(row.Attrs, &attrs); err == nil {
				rec.Accuracy = attrs.Accuracy
			}
		}
		snap[rec.Identifier] = rec
	}
	return snap, nil
}
