/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// WebhookTarget is a tenant-configured HTTP endpoint notified about fleet
// events. Events holds a comma-separated list of event names; empty means all.
type WebhookTarget struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	TenantID  string `gorm:"type:uuid;index"`
	Name      string
	URL       string
	Secret    string `json:"-"`
	Events    string
	Active    bool `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WebhookLog records a single delivery attempt.
type WebhookLog struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	TargetID   string `gorm:"type:uuid;index"`
	Event      string `gorm:"type:varchar(64)"`
	StatusCode int
	Error      string `gorm:"type:text"`
	CreatedAt  time.Time
}
