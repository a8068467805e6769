package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shopfront/client-go/pkg/config"
	pkgerrors "github.com/shopfront/client-go/pkg/errors"
	"github.com/shopfront/client-go/pkg/logger"
)

// Single-row tables; every write replaces the whole record.
const recordID = 1

type cartRow struct {
	ID        int64  `gorm:"primaryKey"`
	Items     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (cartRow) TableName() string { return "cart_records" }

type credentialRow struct {
	ID           int64  `gorm:"primaryKey"`
	AccessToken  string `gorm:"type:text"`
	RefreshToken string `gorm:"type:text"`
	UpdatedAt    time.Time
}

func (credentialRow) TableName() string { return "credential_records" }

type sqliteStore struct {
	conn *gorm.DB
}

// Open boots the local record store backed by a SQLite file.
func Open(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)

	conn, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening storage file: %w", err)
	}

	if err := conn.WithContext(ctx).AutoMigrate(&cartRow{}, &credentialRow{}); err != nil {
		return nil, fmt.Errorf("migrating storage schema: %w", err)
	}

	if logg != nil {
		logg.Debug(ctx, "client storage opened")
	}

	return &sqliteStore{conn: conn}, nil
}

func (s *sqliteStore) LoadCart(ctx context.Context) ([]CartItem, error) {
	var row cartRow
	err := s.conn.WithContext(ctx).First(&row, recordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading cart record")
	}
	if row.Items == "" {
		return nil, nil
	}

	var items []CartItem
	if err := json.Unmarshal([]byte(row.Items), &items); err != nil {
		// A corrupt record is treated as an empty cart rather than a fatal
		// startup error; the next save rewrites it.
		return nil, nil
	}
	return items, nil
}

func (s *sqliteStore) SaveCart(ctx context.Context, items []CartItem) error {
	if items == nil {
		items = []CartItem{}
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding cart record")
	}

	row := cartRow{ID: recordID, Items: string(encoded), UpdatedAt: time.Now().UTC()}
	if err := s.conn.WithContext(ctx).Save(&row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing cart record")
	}
	return nil
}

func (s *sqliteStore) LoadCredentials(ctx context.Context) (*Credentials, error) {
	var row credentialRow
	err := s.conn.WithContext(ctx).First(&row, recordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading credential record")
	}
	if row.AccessToken == "" {
		return nil, nil
	}
	return &Credentials{AccessToken: row.AccessToken, RefreshToken: row.RefreshToken}, nil
}

func (s *sqliteStore) SaveCredentials(ctx context.Context, creds Credentials) error {
	row := credentialRow{
		ID:           recordID,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.conn.WithContext(ctx).Save(&row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing credential record")
	}
	return nil
}

func (s *sqliteStore) ClearCredentials(ctx context.Context) error {
	err := s.conn.WithContext(ctx).Delete(&credentialRow{}, recordID).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing credential record")
	}
	return nil
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return fmt.Errorf("getting sql db handle: %w", err)
	}
	return sqlDB.Close()
}
