package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/config"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

func openMediaTestService(t *testing.T) (*Service, *gorm.DB, string) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.MediaAsset{}, &models.PlaylistItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	root := t.TempDir()
	cfg := &config.Config{
		StorageBackend: config.StorageFilesystem,
		MediaRoot:      root,
	}

	svc, err := NewService(cfg, db, zerolog.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db, root
}

func TestUploadStoresBytesAndMetadata(t *testing.T) {
	svc, _, root := openMediaTestService(t)
	ctx := context.Background()

	asset, err := svc.Upload(ctx, UploadInput{
		TenantID:    "tenant-1",
		Title:       "lobby welcome",
		ContentType: "image/png",
		SizeBytes:   4,
		Body:        strings.NewReader("data"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if !strings.HasSuffix(asset.StorageKey, ".png") {
		t.Fatalf("expected .png storage key, got %s", asset.StorageKey)
	}
	if !strings.HasPrefix(asset.StorageKey, "tenant-1/") {
		t.Fatalf("expected tenant-prefixed key, got %s", asset.StorageKey)
	}

	onDisk := filepath.Join(root, filepath.FromSlash(asset.StorageKey))
	data, err := os.ReadFile(onDisk)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "data" {
		t.Fatalf("stored bytes mismatch: %q", data)
	}

	got, err := svc.Get(ctx, "tenant-1", asset.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "lobby welcome" {
		t.Fatalf("title mismatch: %q", got.Title)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	svc, _, _ := openMediaTestService(t)

	_, err := svc.Upload(context.Background(), UploadInput{
		TenantID:    "tenant-1",
		Title:       "script",
		ContentType: "application/x-sh",
		Body:        strings.NewReader("#!/bin/sh"),
	})
	if err == nil {
		t.Fatal("expected unsupported type error")
	}
}

func TestDeleteRefusesReferencedAsset(t *testing.T) {
	svc, db, _ := openMediaTestService(t)
	ctx := context.Background()

	asset, err := svc.Upload(ctx, UploadInput{
		TenantID:    "tenant-1",
		Title:       "promo",
		ContentType: "video/mp4",
		Body:        strings.NewReader("mp4"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	item := models.PlaylistItem{
		ID:           "item-1",
		PlaylistID:   "playlist-1",
		MediaAssetID: asset.ID,
		Position:     0,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("create playlist item: %v", err)
	}

	if err := svc.Delete(ctx, "tenant-1", asset.ID); err == nil {
		t.Fatal("expected delete of referenced asset to fail")
	}

	if err := db.Delete(&item).Error; err != nil {
		t.Fatalf("remove playlist item: %v", err)
	}
	if err := svc.Delete(ctx, "tenant-1", asset.ID); err != nil {
		t.Fatalf("delete after dereference: %v", err)
	}
	if _, err := svc.Get(ctx, "tenant-1", asset.ID); err != ErrAssetNotFound {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestOpenRoundTrip(t *testing.T) {
	svc, _, _ := openMediaTestService(t)
	ctx := context.Background()

	asset, err := svc.Upload(ctx, UploadInput{
		TenantID:    "tenant-1",
		Title:       "jingle",
		ContentType: "audio/mpeg",
		Body:        strings.NewReader("mp3-bytes"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	rc, meta, err := svc.Open(ctx, "tenant-1", asset.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Fatalf("byte mismatch: %q", data)
	}
	if meta.ContentType != "audio/mpeg" {
		t.Fatalf("content type mismatch: %q", meta.ContentType)
	}
}

func TestOrphanScan(t *testing.T) {
	svc, db, root := openMediaTestService(t)
	ctx := context.Background()

	asset, err := svc.Upload(ctx, UploadInput{
		TenantID:    "tenant-1",
		Title:       "tracked",
		ContentType: "image/jpeg",
		Body:        strings.NewReader("jpg"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	// A file nothing references.
	orphanPath := filepath.Join(root, "tenant-1", "stray.jpg")
	if err := os.MkdirAll(filepath.Dir(orphanPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(orphanPath, []byte("stray"), 0o644); err != nil {
		t.Fatalf("write orphan: %v", err)
	}

	// A row whose bytes were removed out-of-band.
	missing := models.MediaAsset{
		ID:          "missing-1",
		TenantID:    "tenant-1",
		Title:       "gone",
		ContentType: "image/png",
		StorageKey:  "tenant-1/mi/ss/missing-1.png",
	}
	if err := db.Create(&missing).Error; err != nil {
		t.Fatalf("create missing row: %v", err)
	}

	scanner := NewOrphanScanner(db, root, zerolog.Nop())
	result, err := scanner.Scan(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(result.OrphanFiles) != 1 || result.OrphanFiles[0] != "tenant-1/stray.jpg" {
		t.Fatalf("unexpected orphans: %v", result.OrphanFiles)
	}
	if len(result.MissingFiles) != 1 || result.MissingFiles[0] != missing.StorageKey {
		t.Fatalf("unexpected missing: %v", result.MissingFiles)
	}

	// The tracked asset must not be reported either way.
	for _, k := range result.OrphanFiles {
		if k == asset.StorageKey {
			t.Fatalf("tracked asset reported as orphan")
		}
	}

	removed, err := scanner.RemoveOrphans(ctx, result.OrphanFiles)
	if err != nil {
		t.Fatalf("remove orphans: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := os.Stat(orphanPath); !os.IsNotExist(err) {
		t.Fatalf("orphan file still present")
	}
}
