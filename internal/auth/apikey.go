/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/models"
)

// API key constants
const (
	APIKeyPrefix      = "hs_"
	APIKeyRandomBytes = 24 // 24 bytes ≈ 192 bits entropy

	// Device keys outlive user keys by default; rotating a whole fleet's
	// credentials is an operational event, not routine hygiene.
	DeviceKeyLifetime = 5 * 365 * 24 * time.Hour
)

// ErrAPIKeyNotFound is returned when an API key doesn't exist.
var ErrAPIKeyNotFound = errors.New("api key not found")

// ErrAPIKeyExpired is returned when an API key has expired.
var ErrAPIKeyExpired = errors.New("api key expired")

// ErrAPIKeyRevoked is returned when an API key has been revoked.
var ErrAPIKeyRevoked = errors.New("api key revoked")

// ErrUserNotFound is returned when the user for an API key doesn't exist.
var ErrUserNotFound = errors.New("user not found")

// ErrDeviceNotFound is returned when the device for an API key doesn't exist.
var ErrDeviceNotFound = errors.New("device not found")

// ErrDeviceDisabled is returned when the key's device has been disabled.
var ErrDeviceDisabled = errors.New("device disabled")

// GenerateUserKey creates a new API key tied to an admin account.
// Returns the plaintext key (shown to the user once) and the model to store.
func GenerateUserKey(userID, name string, expiresIn time.Duration) (string, *models.APIKey, error) {
	plaintext, key, err := generateKey(name, expiresIn)
	if err != nil {
		return "", nil, err
	}
	key.Kind = models.APIKeyKindUser
	key.UserID = &userID
	return plaintext, key, nil
}

// GenerateDeviceKey creates the credential a device presents on every poll.
func GenerateDeviceKey(deviceID, name string) (string, *models.APIKey, error) {
	plaintext, key, err := generateKey(name, DeviceKeyLifetime)
	if err != nil {
		return "", nil, err
	}
	key.Kind = models.APIKeyKindDevice
	key.DeviceID = &deviceID
	return plaintext, key, nil
}

func generateKey(name string, expiresIn time.Duration) (string, *models.APIKey, error) {
	randomBytes := make([]byte, APIKeyRandomBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, err
	}

	plaintextKey := APIKeyPrefix + hex.EncodeToString(randomBytes)

	hash := sha256.Sum256([]byte(plaintextKey))
	keyHash := hex.EncodeToString(hash[:])

	apiKey := &models.APIKey{
		ID:        uuid.NewString(),
		Name:      name,
		KeyHash:   keyHash,
		KeyPrefix: plaintextKey[:11], // "hs_" + first 8 hex chars
		ExpiresAt: time.Now().Add(expiresIn),
	}

	return plaintextKey, apiKey, nil
}

// ValidateAPIKey validates an API key and returns claims if valid.
// Also updates the LastUsedAt timestamp.
func ValidateAPIKey(db *gorm.DB, plaintextKey string) (*Claims, error) {
	hash := sha256.Sum256([]byte(plaintextKey))
	keyHash := hex.EncodeToString(hash[:])

	var apiKey models.APIKey
	result := db.Where("key_hash = ?", keyHash).First(&apiKey)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrAPIKeyNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	if apiKey.IsRevoked() {
		return nil, ErrAPIKeyRevoked
	}
	if apiKey.IsExpired() {
		return nil, ErrAPIKeyExpired
	}

	claims, err := claimsForKey(db, &apiKey)
	if err != nil {
		return nil, err
	}

	// Update last used timestamp (fire and forget)
	now := time.Now()
	go db.Model(&apiKey).Update("last_used_at", now)

	return claims, nil
}

func claimsForKey(db *gorm.DB, apiKey *models.APIKey) (*Claims, error) {
	if apiKey.Kind == models.APIKeyKindDevice {
		if apiKey.DeviceID == nil {
			return nil, ErrDeviceNotFound
		}
		var device models.Device
		result := db.First(&device, "id = ?", *apiKey.DeviceID)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		if result.Error != nil {
			return nil, result.Error
		}
		if device.Status == models.DeviceStatusDisabled {
			return nil, ErrDeviceDisabled
		}
		return &Claims{DeviceID: device.ID, TenantID: device.TenantID}, nil
	}

	if apiKey.UserID == nil {
		return nil, ErrUserNotFound
	}
	var user models.User
	result := db.First(&user, "id = ?", *apiKey.UserID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return &Claims{
		UserID:   user.ID,
		Roles:    []string{string(user.Role)},
		TenantID: user.TenantID,
	}, nil
}

// RevokeAPIKey revokes an API key. Only the owner can revoke their own keys.
func RevokeAPIKey(db *gorm.DB, keyID, userID string) error {
	now := time.Now()
	result := db.Model(&models.APIKey{}).
		Where("id = ? AND user_id = ?", keyID, userID).
		Update("revoked_at", now)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// ListAPIKeys returns all API keys for a user (without the hash).
func ListAPIKeys(db *gorm.DB, userID string) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}
