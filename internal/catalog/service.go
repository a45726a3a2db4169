/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog assembles the schedule-bearing content list a device poll
// hands to the resolver: the device's assigned playlists plus its tenant's
// announcements, already filtered to active rows.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/cache"
	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/schedule"
)

// ErrDeviceNotFound indicates no device matches the serial number.
var ErrDeviceNotFound = errors.New("device not found")

// Kind tags catalog items so handlers can shape responses per content type.
const (
	KindPlaylist     = "playlist"
	KindAnnouncement = "announcement"
)

// PlaylistPayload is the opaque payload attached to playlist items.
type PlaylistPayload struct {
	Kind        string              `json:"kind"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Entries     []PlaylistEntry     `json:"entries"`
}

// PlaylistEntry is one media reference inside a playlist payload.
type PlaylistEntry struct {
	MediaAssetID string `json:"media_asset_id"`
	Title        string `json:"title"`
	ContentType  string `json:"content_type"`
	StorageKey   string `json:"storage_key"`
	DurationSec  int    `json:"duration_sec"`
	Position     int    `json:"position"`
}

// AnnouncementPayload is the opaque payload attached to announcement items.
type AnnouncementPayload struct {
	Kind         string  `json:"kind"`
	Name         string  `json:"name"`
	Text         string  `json:"text,omitempty"`
	AudioAssetID *string `json:"audio_asset_id,omitempty"`
}

// Service fetches device catalogs. The database handle is injected at
// construction; nothing here touches package-level state.
type Service struct {
	db     *gorm.DB
	cache  *cache.Cache
	logger zerolog.Logger
}

// New creates a catalog service.
func New(db *gorm.DB, c *cache.Cache, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		cache:  c,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// DeviceBySerial resolves a device by its serial number, via cache when warm.
func (s *Service) DeviceBySerial(ctx context.Context, serialNumber string) (*models.Device, error) {
	var device models.Device
	err := s.db.WithContext(ctx).
		Where("serial_number = ?", serialNumber).
		First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query device %s: %w", serialNumber, err)
	}
	return &device, nil
}

// ForDevice returns the device's full schedulable catalog in stable order:
// assigned playlists first (by name), then tenant announcements (by name).
// Versions derive from row update times so devices can cheap-compare.
func (s *Service) ForDevice(ctx context.Context, device *models.Device) ([]schedule.Item, error) {
	if s.cache != nil {
		if items, ok := s.cache.GetDeviceCatalog(ctx, device.ID); ok {
			return items, nil
		}
	}

	playlists, err := s.playlistsForDevice(ctx, device.ID)
	if err != nil {
		return nil, err
	}
	announcements, err := s.announcementsForTenant(ctx, device.TenantID)
	if err != nil {
		return nil, err
	}

	items := make([]schedule.Item, 0, len(playlists)+len(announcements))
	for _, p := range playlists {
		items = append(items, playlistItem(p))
	}
	for _, a := range announcements {
		items = append(items, announcementItem(a))
	}

	if s.cache != nil {
		s.cache.SetDeviceCatalog(ctx, device.ID, items)
	}
	return items, nil
}

// AnnouncementsForTenant returns only the announcement items, for the poll
// endpoint that ignores playlists.
func (s *Service) AnnouncementsForTenant(ctx context.Context, tenantID string) ([]schedule.Item, error) {
	announcements, err := s.announcementsForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	items := make([]schedule.Item, 0, len(announcements))
	for _, a := range announcements {
		items = append(items, announcementItem(a))
	}
	return items, nil
}

// PlaylistsForDevice returns only the playlist items.
func (s *Service) PlaylistsForDevice(ctx context.Context, deviceID string) ([]schedule.Item, error) {
	playlists, err := s.playlistsForDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	items := make([]schedule.Item, 0, len(playlists))
	for _, p := range playlists {
		items = append(items, playlistItem(p))
	}
	return items, nil
}

func (s *Service) playlistsForDevice(ctx context.Context, deviceID string) ([]models.Playlist, error) {
	var playlists []models.Playlist
	err := s.db.WithContext(ctx).
		Joins("JOIN device_playlists ON device_playlists.playlist_id = playlists.id").
		Where("device_playlists.device_id = ?", deviceID).
		Where("playlists.active = ?", true).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Items.MediaAsset").
		Order("playlists.name ASC").
		Find(&playlists).Error
	if err != nil {
		return nil, fmt.Errorf("query device playlists: %w", err)
	}
	return playlists, nil
}

func (s *Service) announcementsForTenant(ctx context.Context, tenantID string) ([]models.Announcement, error) {
	var announcements []models.Announcement
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("active = ?", true).
		Order("name ASC").
		Find(&announcements).Error
	if err != nil {
		return nil, fmt.Errorf("query tenant announcements: %w", err)
	}
	return announcements, nil
}

// InvalidateForWrite drops cached catalogs for every device in a tenant.
// Content writes call this so the next poll sees fresh data.
func (s *Service) InvalidateForWrite(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	var deviceIDs []string
	if err := s.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("tenant_id = ?", tenantID).
		Pluck("id", &deviceIDs).Error; err != nil {
		s.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("catalog invalidation lookup failed")
		return
	}
	s.cache.InvalidateTenantCatalogs(ctx, deviceIDs)
}

func playlistItem(p models.Playlist) schedule.Item {
	entries := make([]PlaylistEntry, 0, len(p.Items))
	for _, item := range p.Items {
		entry := PlaylistEntry{
			MediaAssetID: item.MediaAssetID,
			DurationSec:  item.DurationSec,
			Position:     item.Position,
		}
		if item.MediaAsset != nil {
			entry.Title = item.MediaAsset.Title
			entry.ContentType = item.MediaAsset.ContentType
			entry.StorageKey = item.MediaAsset.StorageKey
			if entry.DurationSec == 0 {
				entry.DurationSec = item.MediaAsset.DurationSec
			}
		}
		entries = append(entries, entry)
	}

	return schedule.Item{
		ID:         p.ID,
		Version:    p.Version(),
		Definition: toDefinition(p.ScheduleFields),
		Payload: PlaylistPayload{
			Kind:        KindPlaylist,
			Name:        p.Name,
			Description: p.Description,
			Entries:     entries,
		},
	}
}

func announcementItem(a models.Announcement) schedule.Item {
	return schedule.Item{
		ID:         a.ID,
		Version:    a.Version(),
		Definition: toDefinition(a.ScheduleFields),
		Payload: AnnouncementPayload{
			Kind:         KindAnnouncement,
			Name:         a.Name,
			Text:         a.Text,
			AudioAssetID: a.AudioAssetID,
		},
	}
}

// ToDefinition converts stored schedule columns into a resolver definition.
// Write handlers use it to validate schedules before persisting them.
func ToDefinition(f models.ScheduleFields) schedule.Definition {
	return toDefinition(f)
}

func toDefinition(f models.ScheduleFields) schedule.Definition {
	return schedule.Definition{
		Mode:            schedule.Mode(f.ScheduleMode),
		StartDate:       f.StartDate,
		EndDate:         f.EndDate,
		DaysOfWeek:      f.DaysOfWeek,
		StartTime:       f.StartTime,
		EndTime:         f.EndTime,
		IntervalMinutes: f.IntervalMinutes,
	}
}
