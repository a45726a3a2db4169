/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"io"
	"mime"
	"path/filepath"
)

// Storage abstracts where asset bytes live. Keys are relative paths of the
// form tenant_id/aa/bb/asset_id.ext; the database stores keys, never URLs.
type Storage interface {
	Store(ctx context.Context, key string, body io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
	CheckAccess(ctx context.Context) error
}

// buildAssetKey constructs a fanned-out storage key so a single directory
// never accumulates the whole tenant's assets.
func buildAssetKey(tenantID, assetID, extension string) string {
	if len(assetID) < 4 {
		return filepath.ToSlash(filepath.Join(tenantID, assetID+extension))
	}
	return filepath.ToSlash(filepath.Join(tenantID, assetID[0:2], assetID[2:4], assetID+extension))
}

// extensionFor maps a content type to a file extension, defaulting to .bin.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "audio/mpeg":
		return ".mp3"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
