/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/friendsincode/heimdall_signage/internal/config"
	"github.com/friendsincode/heimdall_signage/internal/media"
)

var (
	mediaScanRemove bool
	mediaScanJSON   bool
)

var mediaScanCmd = &cobra.Command{
	Use:   "media-scan",
	Short: "Reconcile the media root against asset records",
	Long: `Walk the media root and compare it to the asset database: files with no
database row are orphans, rows whose files are gone are missing.

Only the filesystem storage backend is scanned; S3 deployments should use
bucket lifecycle rules instead.

Examples:
  heimdall media-scan
  heimdall media-scan --remove-orphans
  heimdall media-scan --json > report.json`,
	RunE: runMediaScan,
}

func init() {
	mediaScanCmd.Flags().BoolVar(&mediaScanRemove, "remove-orphans", false, "Delete orphaned files after the scan")
	mediaScanCmd.Flags().BoolVar(&mediaScanJSON, "json", false, "Emit the scan result as JSON on stdout")
	rootCmd.AddCommand(mediaScanCmd)
}

func runMediaScan(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if cfg.StorageBackend != config.StorageFilesystem {
		return fmt.Errorf("media-scan only supports the filesystem backend (current: %s)", cfg.StorageBackend)
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scanner := media.NewOrphanScanner(database, cfg.MediaRoot, logger)
	result, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if mediaScanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		fmt.Printf("Scanned %d file(s) in %s\n", result.TotalFiles, result.Duration)
		fmt.Printf("  Orphans:  %d\n", len(result.OrphanFiles))
		fmt.Printf("  Missing:  %d\n", len(result.MissingFiles))
		fmt.Printf("  Errors:   %d\n", result.Errors)

		for _, key := range result.OrphanFiles {
			fmt.Printf("  orphan: %s\n", key)
		}
		for _, key := range result.MissingFiles {
			fmt.Printf("  missing: %s\n", key)
		}
	}

	if mediaScanRemove && len(result.OrphanFiles) > 0 {
		removed, err := scanner.RemoveOrphans(ctx, result.OrphanFiles)
		if err != nil {
			return fmt.Errorf("remove orphans: %w", err)
		}
		fmt.Printf("Removed %d orphaned file(s)\n", removed)
	}

	return nil
}
