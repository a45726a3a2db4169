/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	return database.AutoMigrate(
		// Platform-level models
		&models.User{},
		&models.APIKey{},
		&models.AuditLog{},
		&models.Tenant{},

		// Fleet resources
		&models.Device{},
		&models.MediaAsset{},
		&models.Playlist{},
		&models.PlaylistItem{},
		&models.Announcement{},
		&models.DevicePlaylist{},

		// People-counting analytics
		&models.CameraZone{},
		&models.ZoneEvent{},

		// Outbound notifications
		&models.WebhookTarget{},
		&models.WebhookLog{},
	)
}
