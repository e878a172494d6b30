package journal

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB persists entries to PostgreSQL through gorm.
type DB struct {
	db *gorm.DB
}

// OpenPostgres connects with the given DSN and migrates the journal table.
func OpenPostgres(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("journal: empty dsn")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, errors.Wrap(err, "migrate journal table")
	}
	return &DB{db: db}, nil
}

// Record implements Recorder. Insert failures are logged, never propagated:
// a journal outage must not affect order flow.
func (d *DB) Record(ctx context.Context, entry Entry) {
	if d == nil || d.db == nil {
		return
	}
	if err := d.db.WithContext(ctx).Create(&entry).Error; err != nil {
		logs.Errorf("journal insert failed: %+v", err)
	}
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
