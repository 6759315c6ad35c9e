package jobstore

import (
	glebarez "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens (creating if absent) a SQLite database at path using the
// pure-Go glebarez driver, so the worker binary needs no cgo toolchain in
// its build/deploy images.
func Open(path string) (*GormStore, error) {
	db, err := gorm.Open(glebarez.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return NewGormStore(db)
}
