package database

import (
	"fmt"
	"strings"

	"flowtechs/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SourcesChannel is the NOTIFY channel fed by the sources trigger.
const SourcesChannel = "sources_changes"

type Database struct {
	DB *gorm.DB
}

func New(databaseURL string, logLevel string) (*Database, error) {
	var db *gorm.DB
	var err error

	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(logLevel)),
		TranslateError: true,
	}

	if IsSQLite(databaseURL) {
		// SQLite for development and tests
		dbPath := strings.TrimPrefix(databaseURL, "sqlite://")
		db, err = gorm.Open(sqlite.Open(dbPath), cfg)
	} else {
		// PostgreSQL for production
		db, err = gorm.Open(postgres.Open(databaseURL), cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{DB: db}, nil
}

// IsSQLite reports whether the URL selects the SQLite driver.
func IsSQLite(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "sqlite://")
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.Info
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	default:
		return logger.Warn
	}
}

// Migrate creates the tables and, on Postgres, the change-notification trigger.
func (d *Database) Migrate() error {
	if err := d.DB.AutoMigrate(&models.Source{}, &models.Destination{}, &models.Transformation{}); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	if d.DB.Dialector.Name() != "postgres" {
		return nil
	}

	notifySQL := `
	CREATE OR REPLACE FUNCTION notify_sources_changes() RETURNS trigger AS $$
	DECLARE
		row_data RECORD;
	BEGIN
		IF TG_OP = 'DELETE' THEN
			row_data := OLD;
		ELSE
			row_data := NEW;
		END IF;
		PERFORM pg_notify('` + SourcesChannel + `', json_build_object(
			'op', TG_OP,
			'id', row_data.id,
			'user_id', row_data.user_id
		)::text);
		RETURN row_data;
	END;
	$$ LANGUAGE plpgsql;

	DROP TRIGGER IF EXISTS sources_changes_trigger ON sources;
	CREATE TRIGGER sources_changes_trigger
		AFTER INSERT OR UPDATE OR DELETE ON sources
		FOR EACH ROW EXECUTE FUNCTION notify_sources_changes();
	`

	if err := d.DB.Exec(notifySQL).Error; err != nil {
		return fmt.Errorf("failed to create sources trigger: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewInMemory opens a private in-memory SQLite database with the schema applied.
func NewInMemory() (*Database, error) {
	url := fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := New(url, "silent")
	if err != nil {
		return nil, err
	}

	// A shared-cache memory database lives only while a connection is open.
	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(); err != nil {
		return nil, err
	}
	return db, nil
}
