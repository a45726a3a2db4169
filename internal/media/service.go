/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/config"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

// ErrAssetNotFound indicates the referenced media asset does not exist.
var ErrAssetNotFound = errors.New("media asset not found")

// ErrUnsupportedType indicates the uploaded content type is not displayable.
var ErrUnsupportedType = errors.New("unsupported media content type")

// ErrAssetInUse indicates playlist items still reference the asset.
var ErrAssetInUse = errors.New("media asset in use")

// displayableTypes lists content types a signage player can render.
var displayableTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"video/mp4":  true,
	"video/webm": true,
	"audio/mpeg": true,
}

// Service manages media asset metadata and the backing byte storage.
type Service struct {
	db      *gorm.DB
	storage Storage
	logger  zerolog.Logger
}

// NewService creates a media service using filesystem or S3 storage per config.
func NewService(cfg *config.Config, db *gorm.DB, logger zerolog.Logger) (*Service, error) {
	var storage Storage

	switch cfg.StorageBackend {
	case config.StorageS3:
		s3Storage, err := NewS3Storage(context.Background(), S3Config{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize s3 storage: %w", err)
		}
		storage = s3Storage
	default:
		storage = NewFilesystemStorage(cfg.MediaRoot, logger)
	}

	return &Service{
		db:      db,
		storage: storage,
		logger:  logger.With().Str("component", "media").Logger(),
	}, nil
}

// UploadInput describes a new asset upload.
type UploadInput struct {
	TenantID    string
	Title       string
	ContentType string
	SizeBytes   int64
	DurationSec int
	Body        io.Reader
}

// Upload stores asset bytes and records the metadata row. The row is written
// only after the bytes land, so a failed upload leaves no dangling reference.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*models.MediaAsset, error) {
	if !displayableTypes[in.ContentType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, in.ContentType)
	}

	asset := &models.MediaAsset{
		ID:          uuid.NewString(),
		TenantID:    in.TenantID,
		Title:       in.Title,
		ContentType: in.ContentType,
		SizeBytes:   in.SizeBytes,
		DurationSec: in.DurationSec,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	asset.StorageKey = buildAssetKey(in.TenantID, asset.ID, extensionFor(in.ContentType))

	if err := s.storage.Store(ctx, asset.StorageKey, in.Body, in.ContentType); err != nil {
		return nil, fmt.Errorf("store asset bytes: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(asset).Error; err != nil {
		// Roll the bytes back so storage does not accumulate orphans.
		if delErr := s.storage.Delete(ctx, asset.StorageKey); delErr != nil {
			s.logger.Warn().Err(delErr).Str("key", asset.StorageKey).Msg("failed to remove bytes after metadata failure")
		}
		return nil, fmt.Errorf("store asset metadata: %w", err)
	}

	s.logger.Info().
		Str("asset_id", asset.ID).
		Str("tenant_id", in.TenantID).
		Str("content_type", in.ContentType).
		Int64("size_bytes", in.SizeBytes).
		Msg("media asset uploaded")

	return asset, nil
}

// Get returns one asset's metadata.
func (s *Service) Get(ctx context.Context, tenantID, assetID string) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	err := s.db.WithContext(ctx).
		First(&asset, "id = ? AND tenant_id = ?", assetID, tenantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// List returns a tenant's assets, newest first.
func (s *Service) List(ctx context.Context, tenantID string) ([]models.MediaAsset, error) {
	var assets []models.MediaAsset
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// Open returns a reader over the asset bytes.
func (s *Service) Open(ctx context.Context, tenantID, assetID string) (io.ReadCloser, *models.MediaAsset, error) {
	asset, err := s.Get(ctx, tenantID, assetID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.storage.Open(ctx, asset.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return rc, asset, nil
}

// Delete removes an asset and its bytes. Assets still referenced by playlist
// items are refused.
func (s *Service) Delete(ctx context.Context, tenantID, assetID string) error {
	asset, err := s.Get(ctx, tenantID, assetID)
	if err != nil {
		return err
	}

	var refs int64
	if err := s.db.WithContext(ctx).Model(&models.PlaylistItem{}).
		Where("media_asset_id = ?", assetID).
		Count(&refs).Error; err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: %s referenced by %d playlist items", ErrAssetInUse, assetID, refs)
	}

	if err := s.db.WithContext(ctx).Delete(&models.MediaAsset{}, "id = ?", assetID).Error; err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, asset.StorageKey); err != nil {
		s.logger.Warn().Err(err).Str("key", asset.StorageKey).Msg("metadata removed but bytes remain")
	}

	s.logger.Info().Str("asset_id", assetID).Msg("media asset deleted")
	return nil
}

// URL returns the serving URL for an asset.
func (s *Service) URL(asset *models.MediaAsset) string {
	return s.storage.URL(asset.StorageKey)
}

// CheckStorageAccess verifies the storage backend is reachable.
func (s *Service) CheckStorageAccess() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.storage.CheckAccess(ctx)
}
