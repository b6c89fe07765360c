// Package store persists the derived access credential per account. The
// credential is the only session state that survives reconnects.
package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Account is one remote-service login known to the store. Credential is an
// opaque serialized token string; empty means no handshake has completed.
type Account struct {
	ID         uint   `gorm:"primarykey"`
	Name       string `gorm:"uniqueIndex;size:64"`
	BaseURL    string
	Credential string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Open opens a SQLite-backed store at path (":memory:" for tests).
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return newStore(db)
}

// OpenMySQL opens a store on a MySQL-compatible server.
func OpenMySQL(host string, port int, database string) (*Store, error) {
	dsn := fmt.Sprintf("root@tcp(%s:%d)/%s?parseTime=true", host, port, database)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect to %s:%d/%s: %w", host, port, database, err)
	}
	return newStore(db)
}

func newStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Account{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Store wraps the account table.
type Store struct {
	db *gorm.DB
}

// Account returns the row for name, creating it if absent.
func (s *Store) Account(name, baseURL string) (*Account, error) {
	var acct Account
	err := s.db.Where("name = ?", name).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acct = Account{Name: name, BaseURL: baseURL}
		if err := s.db.Create(&acct).Error; err != nil {
			return nil, fmt.Errorf("store: create account %s: %w", name, err)
		}
		return &acct, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load account %s: %w", name, err)
	}
	return &acct, nil
}

// SaveCredential stores the serialized access credential for name.
func (s *Store) SaveCredential(name, credential string) error {
	res := s.db.Model(&Account{}).Where("name = ?", name).Update("credential", credential)
	if res.Error != nil {
		return fmt.Errorf("store: save credential for %s: %w", name, res.Error)
	}
	return nil
}
