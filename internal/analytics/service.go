/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/telemetry"
)

// ErrZoneNotFound indicates the referenced camera zone does not exist.
var ErrZoneNotFound = errors.New("camera zone not found")

// Observation is one person sighting as reported by a device camera.
type Observation struct {
	ZoneID      string    `json:"zone_id"`
	PersonIdent string    `json:"person_ident"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Service stores camera zone sightings and answers people-count queries.
// A person lingering in front of a display produces many sightings with the
// same re-identification label; counts therefore aggregate distinct labels,
// not raw events.
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger

	retention time.Duration
}

// NewService creates a zone analytics service.
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:        db,
		logger:    logger.With().Str("component", "analytics").Logger(),
		retention: 90 * 24 * time.Hour,
	}
}

// SetRetention overrides how long raw zone events are kept.
func (s *Service) SetRetention(d time.Duration) {
	if d > 0 {
		s.retention = d
	}
}

// CreateZone registers a named detection region for a device camera.
func (s *Service) CreateZone(ctx context.Context, tenantID, deviceID, name string) (*models.CameraZone, error) {
	zone := &models.CameraZone{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		DeviceID: deviceID,
		Name:     name,
	}
	if err := s.db.WithContext(ctx).Create(zone).Error; err != nil {
		return nil, err
	}
	return zone, nil
}

// ZonesForDevice lists the camera zones configured for a device.
func (s *Service) ZonesForDevice(ctx context.Context, deviceID string) ([]models.CameraZone, error) {
	var zones []models.CameraZone
	if err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("name").
		Find(&zones).Error; err != nil {
		return nil, err
	}
	return zones, nil
}

// Ingest stores a batch of sightings from one device. Observations that
// reference a zone not belonging to the device are skipped, not failed, so a
// stale zone configuration on the device cannot poison the whole batch.
func (s *Service) Ingest(ctx context.Context, deviceID string, observations []Observation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	zones, err := s.ZonesForDevice(ctx, deviceID)
	if err != nil {
		return 0, err
	}
	known := make(map[string]struct{}, len(zones))
	for _, z := range zones {
		known[z.ID] = struct{}{}
	}

	now := time.Now().UTC()
	rows := make([]models.ZoneEvent, 0, len(observations))
	for _, obs := range observations {
		if _, ok := known[obs.ZoneID]; !ok {
			s.logger.Warn().
				Str("device_id", deviceID).
				Str("zone_id", obs.ZoneID).
				Msg("sighting references unknown zone, skipping")
			continue
		}
		if obs.PersonIdent == "" {
			continue
		}
		observedAt := obs.ObservedAt
		if observedAt.IsZero() {
			observedAt = now
		}
		rows = append(rows, models.ZoneEvent{
			ID:          uuid.NewString(),
			ZoneID:      obs.ZoneID,
			DeviceID:    deviceID,
			PersonIdent: obs.PersonIdent,
			ObservedAt:  observedAt.UTC(),
			CreatedAt:   now,
		})
	}

	if len(rows) == 0 {
		return 0, nil
	}

	if err := s.db.WithContext(ctx).CreateInBatches(rows, 200).Error; err != nil {
		return 0, err
	}

	telemetry.ZoneEventsIngestedTotal.Add(float64(len(rows)))

	return len(rows), nil
}

// Count returns the number of distinct people seen in a zone over a window.
func (s *Service) Count(ctx context.Context, zoneID string, from, to time.Time) (*models.ZoneCount, error) {
	var zone models.CameraZone
	if err := s.db.WithContext(ctx).First(&zone, "id = ?", zoneID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrZoneNotFound
		}
		return nil, err
	}

	var unique int64
	if err := s.db.WithContext(ctx).Model(&models.ZoneEvent{}).
		Where("zone_id = ? AND observed_at >= ? AND observed_at <= ?", zoneID, from, to).
		Distinct("person_ident").
		Count(&unique).Error; err != nil {
		return nil, err
	}

	return &models.ZoneCount{
		ZoneID:       zoneID,
		UniquePeople: unique,
		From:         from,
		To:           to,
	}, nil
}

// CountsForDevice aggregates distinct-person counts for every zone of a device.
func (s *Service) CountsForDevice(ctx context.Context, deviceID string, from, to time.Time) ([]models.ZoneCount, error) {
	zones, err := s.ZonesForDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	counts := make([]models.ZoneCount, 0, len(zones))
	for _, zone := range zones {
		count, err := s.Count(ctx, zone.ID, from, to)
		if err != nil {
			return nil, err
		}
		counts = append(counts, *count)
	}
	return counts, nil
}

// Start runs the retention cleanup loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Dur("retention", s.retention).Msg("zone analytics retention loop started")

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("zone analytics retention loop stopped")
			return
		case t := <-ticker.C:
			s.pruneOldEvents(ctx, t)
		}
	}
}

func (s *Service) pruneOldEvents(ctx context.Context, now time.Time) {
	cutoff := now.Add(-s.retention).UTC()
	result := s.db.WithContext(ctx).Where("observed_at < ?", cutoff).Delete(&models.ZoneEvent{})
	if result.Error != nil {
		s.logger.Warn().Err(result.Error).Msg("failed to prune old zone events")
		return
	}
	if result.RowsAffected > 0 {
		s.logger.Info().Int64("removed", result.RowsAffected).Msg("pruned old zone events")
	}
}
