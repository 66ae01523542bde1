package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"deltanet/pkg/model"
)

// GormStore backs the RecordStore with a gorm-managed database (MySQL in
// production; see pkg/db).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetArtifact(ctx context.Context, id string) (model.Artifact, bool, error) {
	var a model.Artifact
	err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Artifact{}, false, nil
	}
	if err != nil {
		return model.Artifact{}, false, err
	}
	return a, true, nil
}

func (s *GormStore) ListArtifacts(ctx context.Context, titleFilter string, limit int) ([]model.Artifact, error) {
	q := s.db.WithContext(ctx).Model(&model.Artifact{})
	if titleFilter != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(titleFilter)+"%")
	}
	var out []model.Artifact
	err := q.Order("created_at, id").Limit(clampLimit(limit)).Find(&out).Error
	return out, err
}

func (s *GormStore) InsertArtifact(ctx context.Context, a model.Artifact) error {
	return s.db.WithContext(ctx).Save(&a).Error
}

func (s *GormStore) GetAsset(ctx context.Context, id string) (model.Asset, bool, error) {
	var a model.Asset
	err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Asset{}, false, nil
	}
	if err != nil {
		return model.Asset{}, false, err
	}
	return a, true, nil
}

func (s *GormStore) ListAssets(ctx context.Context, artifactID string) ([]model.Asset, error) {
	var out []model.Asset
	err := s.db.WithContext(ctx).Where("artifact_id = ?", artifactID).Order("id").Find(&out).Error
	return out, err
}

func (s *GormStore) InsertAsset(ctx context.Context, a model.Asset) error {
	return s.db.WithContext(ctx).Save(&a).Error
}

func (s *GormStore) ListCollections(ctx context.Context, limit int) ([]model.Collection, error) {
	var out []model.Collection
	err := s.db.WithContext(ctx).Order("id").Limit(clampLimit(limit)).Find(&out).Error
	return out, err
}

func (s *GormStore) InsertConsent(ctx context.Context, c model.Consent) error {
	return s.db.WithContext(ctx).Save(&c).Error
}

func (s *GormStore) AppendAudit(ctx context.Context, e model.AuditEntry) error {
	return s.db.WithContext(ctx).Create(&e).Error
}
