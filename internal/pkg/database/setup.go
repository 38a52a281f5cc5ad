package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/carsalesplatform/carsales/app/models"
	"github.com/carsalesplatform/carsales/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

// GetDB returns the process-wide connection set up by SetupDatabase.
func GetDB() *gorm.DB {
	return DB
}

// SetDB replaces the process-wide connection (tests, tools).
func SetDB(db *gorm.DB) {
	DB = db
}

// SetupDatabase connects using DB_DRIVER (mysql or sqlite) and migrates the schema.
func SetupDatabase() {
	var err error
	driver := env.GetEnv("DB_DRIVER", "mysql")

	for i := 0; i < maxRetries; i++ {
		switch driver {
		case "sqlite":
			DB, err = OpenSQLite(env.GetEnv("DB_PATH", "./data/carsales.db"))
		default:
			DB, err = OpenMySQL(mysqlDSN())
		}
		if err == nil {
			if err = Migrate(DB); err != nil {
				panic(err)
			}
			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

func mysqlDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)
}

// OpenMySQL opens the production database.
func OpenMySQL(dsn string) (*gorm.DB, error) {
	return gorm.Open(mysql.New(mysql.Config{
		DSN:                       dsn,
		DefaultStringSize:         256,
		DisableDatetimePrecision:  true,
		DontSupportRenameIndex:    true,
		DontSupportRenameColumn:   true,
		SkipInitializeWithVersion: false,
	}), &gorm.Config{Logger: newLogger()})
}

// OpenSQLite opens a file-backed SQLite database. A single connection is kept
// so that transactions and plain queries never contend for the write lock.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), &gorm.Config{
		Logger: newLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate creates or updates the tables for every model.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Make{},
		&models.VehicleModel{},
		&models.Trim{},
		&models.Vehicle{},
		&models.VehiclePhoto{},
		&models.PhotoUploadJob{},
		&models.PhotoUploadItem{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := enforceSingleCover(db); err != nil {
		return fmt.Errorf("single cover constraint failed: %w", err)
	}
	return nil
}

const singleCoverIndex = "uq_vehicle_photos_single_cover"

// enforceSingleCover adds the unique key that allows one cover per vehicle.
// SQLite gets a partial index, MySQL a generated column that is NULL for
// non-cover rows (see migrations/000005).
func enforceSingleCover(db *gorm.DB) error {
	switch db.Dialector.Name() {
	case "sqlite":
		return db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS " + singleCoverIndex +
			" ON vehicle_photos (vehicle_id) WHERE is_cover = 1").Error
	case "mysql":
		if db.Migrator().HasIndex(&models.VehiclePhoto{}, singleCoverIndex) {
			return nil
		}
		return db.Exec("ALTER TABLE vehicle_photos" +
			" ADD COLUMN cover_vehicle_id BIGINT UNSIGNED AS (IF(is_cover, vehicle_id, NULL)) STORED," +
			" ADD UNIQUE KEY " + singleCoverIndex + " (cover_vehicle_id)").Error
	default:
		return nil
	}
}

func newLogger() logger.Interface {
	level := logger.Warn
	if env.IsDev() {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
