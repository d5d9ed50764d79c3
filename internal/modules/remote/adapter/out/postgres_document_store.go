package out

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"tether/internal/modules/remote/domain"
	remoteout "tether/internal/modules/remote/port/out"
)

type documentRow struct {
	OwnerID      string `gorm:"primaryKey;size:128"`
	Collection   string `gorm:"primaryKey;size:64"`
	ID           string `gorm:"primaryKey;size:128"`
	Data         string `gorm:"type:jsonb;not null"`
	LastModified int64  `gorm:"not null;index"`
}

func (documentRow) TableName() string {
	return "documents"
}

type PostgresDocumentStore struct {
	db *gorm.DB
}

// OpenPostgres connects with gorm's own logging silenced.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

func NewPostgresDocumentStore(db *gorm.DB) (remoteout.Repository, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	return &PostgresDocumentStore{db: db}, nil
}

func (s *PostgresDocumentStore) Get(ctx context.Context, key domain.Key) (domain.Document, error) {
	var row documentRow
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND collection = ? AND id = ?", key.OwnerID, key.Collection, key.ID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Document{}, fmt.Errorf("%s: %w", key.String(), domain.ErrDocumentNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document: %w", err)
	}
	return row.toDomain(), nil
}

func (s *PostgresDocumentStore) Put(ctx context.Context, doc domain.Document) error {
	row := documentRow{
		OwnerID:      doc.OwnerID,
		Collection:   doc.Collection,
		ID:           doc.ID,
		Data:         string(doc.Data),
		LastModified: doc.LastModified.UnixNano(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "last_modified"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

func (s *PostgresDocumentStore) Delete(ctx context.Context, key domain.Key) error {
	result := s.db.WithContext(ctx).
		Where("owner_id = ? AND collection = ? AND id = ?", key.OwnerID, key.Collection, key.ID).
		Delete(&documentRow{})
	if result.Error != nil {
		return fmt.Errorf("delete document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", key.String(), domain.ErrDocumentNotFound)
	}
	return nil
}

func (s *PostgresDocumentStore) List(ctx context.Context, ownerID, collection string, since time.Time) ([]domain.Document, error) {
	var sinceNanos int64
	if !since.IsZero() {
		sinceNanos = since.UnixNano()
	}
	var rows []documentRow
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND collection = ? AND last_modified > ?", ownerID, collection, sinceNanos).
		Order("last_modified").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]domain.Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r documentRow) toDomain() domain.Document {
	return domain.Document{
		Key:          domain.Key{OwnerID: r.OwnerID, Collection: r.Collection, ID: r.ID},
		Data:         json.RawMessage(r.Data),
		LastModified: time.Unix(0, r.LastModified).UTC(),
	}
}
