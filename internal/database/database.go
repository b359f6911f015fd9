package database

import (
	"fmt"
	"time"

	"github.com/intellego/platform/internal/config"
	"github.com/intellego/platform/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Open connects using the configured driver and migrates the schema.
// withVectors also migrates report embeddings, which needs Postgres with
// pgvector.
func Open(dbConfig *config.DBConfig, appConfig *config.AppConfig, withVectors bool) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
	if appConfig.IsProduction() {
		gormConfig.Logger = gormLogger.Default.LogMode(gormLogger.Warn)
	}

	var dialector gorm.Dialector
	switch dbConfig.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(dbConfig.PostgresDSN())
	case config.DriverSQLite:
		dialector = sqlite.Open(dbConfig.SQLitePath + "?_foreign_keys=on&_busy_timeout=5000")
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", dbConfig.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("could not get database instance: %w", err)
	}

	switch {
	case dbConfig.Driver == config.DriverSQLite:
		sqlDB.SetMaxOpenConns(1)
	case appConfig.IsProduction():
		sqlDB.SetMaxIdleConns(20)
		sqlDB.SetMaxOpenConns(200)
		sqlDB.SetConnMaxLifetime(time.Hour)
	default:
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := Migrate(db, withVectors && dbConfig.Driver == config.DriverPostgres); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the schema. Report embeddings need pgvector and are only
// migrated on Postgres.
func Migrate(db *gorm.DB, withVectors bool) error {
	err := db.AutoMigrate(
		&model.Student{},
		&model.WeeklyReport{},
		&model.ReportAnswer{},
		&model.Feedback{},
		&model.Evaluation{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if !withVectors {
		return nil
	}
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	if err := db.AutoMigrate(&model.ReportEmbedding{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// OpenInMemory returns a migrated sqlite database living in a single
// connection. Intended for tests.
func OpenInMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db, false); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}
