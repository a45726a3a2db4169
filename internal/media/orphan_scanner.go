/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/models"
)

// ScanResult summarizes one orphan scan pass.
type ScanResult struct {
	TotalFiles   int      `json:"total_files"`
	OrphanFiles  []string `json:"orphan_files"`  // bytes on disk with no asset row
	MissingFiles []string `json:"missing_files"` // asset rows whose bytes are gone
	Errors       int      `json:"errors"`
	Duration     string   `json:"duration"`
}

// OrphanScanner reconciles the media root against asset rows. Only the
// filesystem backend is scanned; object storage is reconciled by bucket
// lifecycle rules instead.
type OrphanScanner struct {
	db        *gorm.DB
	mediaRoot string
	logger    zerolog.Logger
}

// NewOrphanScanner creates an orphan scanner over the media root.
func NewOrphanScanner(db *gorm.DB, mediaRoot string, logger zerolog.Logger) *OrphanScanner {
	return &OrphanScanner{
		db:        db,
		mediaRoot: mediaRoot,
		logger:    logger.With().Str("component", "orphan_scanner").Logger(),
	}
}

// Scan walks the media root and reports disk/database mismatches.
func (s *OrphanScanner) Scan(ctx context.Context) (*ScanResult, error) {
	start := time.Now()
	result := &ScanResult{}

	s.logger.Info().Str("media_root", s.mediaRoot).Msg("starting orphan scan")

	known, err := s.knownStorageKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("load known storage keys: %w", err)
	}

	seen := make(map[string]struct{})

	err = filepath.Walk(s.mediaRoot, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn().Err(walkErr).Str("path", path).Msg("error accessing path")
			result.Errors++
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(s.mediaRoot, path)
		if err != nil {
			result.Errors++
			return nil
		}
		key := filepath.ToSlash(relPath)

		result.TotalFiles++
		seen[key] = struct{}{}

		if _, ok := known[key]; !ok {
			result.OrphanFiles = append(result.OrphanFiles, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for key := range known {
		if _, ok := seen[key]; !ok {
			result.MissingFiles = append(result.MissingFiles, key)
		}
	}

	result.Duration = time.Since(start).String()

	s.logger.Info().
		Int("total_files", result.TotalFiles).
		Int("orphans", len(result.OrphanFiles)).
		Int("missing", len(result.MissingFiles)).
		Int("errors", result.Errors).
		Msg("orphan scan complete")

	return result, nil
}

// RemoveOrphans deletes files that have no asset row. Run Scan first and
// review the report; this is destructive.
func (s *OrphanScanner) RemoveOrphans(ctx context.Context, keys []string) (int, error) {
	removed := 0
	for _, key := range keys {
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}

		fullPath := filepath.Join(s.mediaRoot, filepath.FromSlash(key))
		if err := os.Remove(fullPath); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("remove %s: %w", key, err)
		}
		removed++
	}

	s.logger.Info().Int("removed", removed).Msg("orphan files removed")
	return removed, nil
}

func (s *OrphanScanner) knownStorageKeys(ctx context.Context) (map[string]struct{}, error) {
	var keys []string
	if err := s.db.WithContext(ctx).Model(&models.MediaAsset{}).
		Pluck("storage_key", &keys).Error; err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		known[key] = struct{}{}
	}
	return known, nil
}
