package models

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	sqliteEncrypt "github.com/Daskott/gorm-sqlite-cipher"
	"github.com/airis-sh/airis/logger"
	"github.com/airis-sh/airis/utils"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const (
	DB_NAME                  = "airis.db"
	DEFAULT_MESSAGE_TEMPLATE = "Emergency! I need assistance. Please contact me immediately."
)

var logg = logger.NewLogger()
var db *gorm.DB

// AutoMigrate auto-migrates the settings schema and inserts seed data
func AutoMigrate(passPhrase string, dbRootDir string) error {
	err := openDB(passPhrase, dbRootDir)
	if err != nil {
		return err
	}

	err = db.AutoMigrate(&Contact{}, &Setting{}, &AlertRecord{})
	if err != nil {
		return fmt.Errorf("failed to migrate database: %v", err)
	}

	return populateDBWithSeedData()
}

// InitializeTestDb opens a fresh database in a temp directory. Only meant for tests.
func InitializeTestDb() {
	dir, err := os.MkdirTemp("", "airis-test-db")
	if err != nil {
		log.Panic(err)
	}

	err = AutoMigrate("test-pass-phrase", dir)
	if err != nil {
		log.Panic(err)
	}
}

// DbFilePath is where the sqlite file for 'dbRootDir' lives
func DbFilePath(dbRootDir string) (string, error) {
	dbDir, err := DbDirectory(dbRootDir)
	if err != nil {
		return "", err
	}

	return filepath.Join(dbDir, DB_NAME), nil
}

func DbDirectory(dbRootDir string) (string, error) {
	dbDir := filepath.Join(dbRootDir, "db")

	err := utils.CreateDirIfNotExist(dbDir)
	if err != nil {
		return "", err
	}

	return dbDir, nil
}

// Checkpoint flushes the write-ahead log into the main db file, so the file
// can be copied on its own
func Checkpoint() error {
	return db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func openDB(passPhrase string, dbRootDir string) error {
	dbDSNVal, err := dbDSN(passPhrase, dbRootDir)
	if err != nil {
		return fmt.Errorf("failed to set sqlite DSN: %v", err)
	}

	db, err = gorm.Open(sqliteEncrypt.Open(dbDSNVal), &gorm.Config{
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				LogLevel:                  gormLogger.Silent,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %v", err)
	}

	return nil
}

func populateDBWithSeedData() error {
	err := db.First(&Setting{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logg.Info("Inserting seed data into 'Setting'")
		return db.Create(&Setting{MessageTemplate: DEFAULT_MESSAGE_TEMPLATE, SosEnabled: true}).Error
	}

	return err
}

func dbDSN(passPhrase string, dbRootDir string) (string, error) {
	dbFilePath, err := DbFilePath(dbRootDir)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"file:%v?_pragma_key=%s&_pragma_cipher_page_size=4096&_journal_mode=WAL",
		dbFilePath,
		passPhrase,
	), nil
}
