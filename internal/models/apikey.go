/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// APIKeyKind distinguishes human keys from device credentials.
type APIKeyKind string

const (
	APIKeyKindUser   APIKeyKind = "user"
	APIKeyKindDevice APIKeyKind = "device"
)

// APIKey represents a hashed credential for programmatic access. User keys
// belong to an admin account; device keys are minted at device registration
// and presented on every poll.
type APIKey struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	Kind       APIKeyKind `gorm:"type:varchar(8);not null;default:'user'" json:"kind"`
	UserID     *string    `gorm:"type:uuid;index" json:"user_id,omitempty"`
	DeviceID   *string    `gorm:"type:uuid;index" json:"device_id,omitempty"`
	Name       string     `gorm:"not null" json:"name"`
	KeyHash    string     `gorm:"not null" json:"-"`
	KeyPrefix  string     `gorm:"size:11" json:"key_prefix"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsExpired returns true if the API key has expired.
func (k *APIKey) IsExpired() bool {
	return time.Now().After(k.ExpiresAt)
}

// IsRevoked returns true if the API key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// IsValid returns true if the API key is neither expired nor revoked.
func (k *APIKey) IsValid() bool {
	return !k.IsExpired() && !k.IsRevoked()
}
