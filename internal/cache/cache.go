/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently accessed
// data, primarily the per-device content catalog hammered by poll endpoints.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_signage/internal/schedule"
)

// Default TTL values for different cache types
const (
	DefaultCatalogTTL    = 30 * time.Second
	DefaultDeviceTTL     = 5 * time.Minute
	DefaultTenantListTTL = 5 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyTenantList    = "heimdall:cache:tenants"
	KeyDevice        = "heimdall:cache:device:"         // + serial_number
	KeyDeviceCatalog = "heimdall:cache:device_catalog:" // + device_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	CatalogTTL    time.Duration
	DeviceTTL     time.Duration
	TenantListTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		CatalogTTL:     DefaultCatalogTTL,
		DeviceTTL:      DefaultDeviceTTL,
		TenantListTTL:  DefaultTenantListTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance. An unreachable Redis degrades to a
// disabled cache instead of failing startup.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// CachedDevice is the subset of device fields poll endpoints need.
type CachedDevice struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenant_id"`
	SerialNumber string `json:"serial_number"`
	Status       string `json:"status"`
}

// GetDevice retrieves a cached device by serial number.
func (c *Cache) GetDevice(ctx context.Context, serialNumber string) (*CachedDevice, bool) {
	var device CachedDevice
	found, err := c.get(ctx, KeyDevice+serialNumber, &device)
	if err != nil || !found {
		return nil, false
	}
	return &device, true
}

// SetDevice caches a device lookup.
func (c *Cache) SetDevice(ctx context.Context, device CachedDevice) {
	_ = c.set(ctx, KeyDevice+device.SerialNumber, device, c.config.DeviceTTL)
}

// InvalidateDevice drops a cached device.
func (c *Cache) InvalidateDevice(ctx context.Context, serialNumber string) {
	_ = c.delete(ctx, KeyDevice+serialNumber)
}

// GetDeviceCatalog retrieves the cached schedule catalog for a device.
// The TTL is short: a stale catalog delays content changes by at most one
// cache window, while the resolver itself always sees fresh wall-clock time.
func (c *Cache) GetDeviceCatalog(ctx context.Context, deviceID string) ([]schedule.Item, bool) {
	var items []schedule.Item
	found, err := c.get(ctx, KeyDeviceCatalog+deviceID, &items)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("device_id", deviceID).Int("items", len(items)).Msg("device catalog cache hit")
	return items, true
}

// SetDeviceCatalog caches a device's catalog.
func (c *Cache) SetDeviceCatalog(ctx context.Context, deviceID string, items []schedule.Item) {
	_ = c.set(ctx, KeyDeviceCatalog+deviceID, items, c.config.CatalogTTL)
}

// InvalidateDeviceCatalog drops a device's cached catalog.
func (c *Cache) InvalidateDeviceCatalog(ctx context.Context, deviceID string) {
	_ = c.delete(ctx, KeyDeviceCatalog+deviceID)
}

// InvalidateTenantCatalogs drops every cached catalog for a tenant's devices.
// Called on playlist/announcement writes; the device list comes from the
// caller since the cache does not know tenant membership.
func (c *Cache) InvalidateTenantCatalogs(ctx context.Context, deviceIDs []string) {
	for _, id := range deviceIDs {
		_ = c.delete(ctx, KeyDeviceCatalog+id)
	}
}

// CachedTenant represents a cached tenant record.
type CachedTenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetTenantList retrieves the cached list of tenants.
func (c *Cache) GetTenantList(ctx context.Context) ([]CachedTenant, bool) {
	var tenants []CachedTenant
	found, err := c.get(ctx, KeyTenantList, &tenants)
	if err != nil || !found {
		return nil, false
	}
	return tenants, true
}

// SetTenantList caches the tenant list.
func (c *Cache) SetTenantList(ctx context.Context, tenants []CachedTenant) {
	_ = c.set(ctx, KeyTenantList, tenants, c.config.TenantListTTL)
}

// InvalidateTenantList drops the cached tenant list.
func (c *Cache) InvalidateTenantList(ctx context.Context) {
	_ = c.delete(ctx, KeyTenantList)
}
