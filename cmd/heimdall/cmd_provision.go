/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/auth"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

var (
	provisionFile   string
	provisionDryRun bool
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Bulk-provision tenants and devices from a YAML manifest",
	Long: `Provision tenants and devices from a YAML manifest and print the
generated device API keys. Keys are shown once and never stored in plaintext.

Manifest format:

  tenants:
    - name: Acme Retail
      description: Downtown stores
      devices:
        - serial_number: KIOSK-0001
          name: Front window
          location: Collins St
          model: BrightSign XT5

Existing tenants (matched by name) and devices (matched by serial number)
are left untouched.`,
	RunE: runProvision,
}

type provisionManifest struct {
	Tenants []provisionTenant `yaml:"tenants"`
}

type provisionTenant struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Devices     []provisionDevice `yaml:"devices"`
}

type provisionDevice struct {
	SerialNumber string `yaml:"serial_number"`
	Name         string `yaml:"name"`
	Location     string `yaml:"location"`
	Model        string `yaml:"model"`
}

func init() {
	provisionCmd.Flags().StringVarP(&provisionFile, "file", "f", "", "Path to YAML manifest (required)")
	provisionCmd.Flags().BoolVar(&provisionDryRun, "dry-run", false, "Validate the manifest without writing anything")
	provisionCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	raw, err := os.ReadFile(provisionFile)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var manifest provisionManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}

	if err := validateManifest(&manifest); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	if provisionDryRun {
		deviceCount := 0
		for _, t := range manifest.Tenants {
			deviceCount += len(t.Devices)
		}
		fmt.Printf("Manifest OK: %d tenant(s), %d device(s)\n", len(manifest.Tenants), deviceCount)
		fmt.Println("Run without --dry-run to provision.")
		return nil
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	logger.Info().
		Str("manifest", provisionFile).
		Int("tenants", len(manifest.Tenants)).
		Msg("starting fleet provisioning")

	var created, skipped int
	for _, tenantSpec := range manifest.Tenants {
		tenant, err := ensureTenant(database, tenantSpec)
		if err != nil {
			return fmt.Errorf("tenant %q: %w", tenantSpec.Name, err)
		}

		for _, deviceSpec := range tenantSpec.Devices {
			var existing models.Device
			err := database.Where("serial_number = ?", deviceSpec.SerialNumber).First(&existing).Error
			if err == nil {
				logger.Info().Str("serial_number", deviceSpec.SerialNumber).Msg("device already provisioned, skipping")
				skipped++
				continue
			}
			if !is404(err) {
				return fmt.Errorf("device %q: %w", deviceSpec.SerialNumber, err)
			}

			device := models.Device{
				ID:           uuid.NewString(),
				TenantID:     tenant.ID,
				SerialNumber: deviceSpec.SerialNumber,
				Name:         deviceSpec.Name,
				Location:     deviceSpec.Location,
				Model:        deviceSpec.Model,
				Status:       models.DeviceStatusActive,
			}
			if err := database.Create(&device).Error; err != nil {
				return fmt.Errorf("create device %q: %w", deviceSpec.SerialNumber, err)
			}

			plaintext, key, err := auth.GenerateDeviceKey(device.ID, deviceSpec.SerialNumber)
			if err != nil {
				return fmt.Errorf("generate key for %q: %w", deviceSpec.SerialNumber, err)
			}
			if err := database.Create(key).Error; err != nil {
				return fmt.Errorf("store key for %q: %w", deviceSpec.SerialNumber, err)
			}

			fmt.Printf("%-24s %s\n", deviceSpec.SerialNumber, plaintext)
			created++
		}
	}

	fmt.Printf("\nProvisioned %d device(s), skipped %d existing.\n", created, skipped)
	fmt.Println("Record the API keys above; they cannot be retrieved again.")
	return nil
}

func validateManifest(m *provisionManifest) error {
	if len(m.Tenants) == 0 {
		return fmt.Errorf("no tenants defined")
	}
	seen := make(map[string]struct{})
	for _, t := range m.Tenants {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("tenant with empty name")
		}
		for _, d := range t.Devices {
			serial := strings.TrimSpace(d.SerialNumber)
			if serial == "" {
				return fmt.Errorf("tenant %q: device with empty serial_number", t.Name)
			}
			if _, dup := seen[serial]; dup {
				return fmt.Errorf("duplicate serial_number %q", serial)
			}
			seen[serial] = struct{}{}
		}
	}
	return nil
}

func ensureTenant(database *gorm.DB, spec provisionTenant) (*models.Tenant, error) {
	var tenant models.Tenant
	err := database.Where("name = ?", spec.Name).First(&tenant).Error
	if err == nil {
		return &tenant, nil
	}
	if !is404(err) {
		return nil, err
	}

	tenant = models.Tenant{
		ID:          uuid.NewString(),
		Name:        spec.Name,
		Description: spec.Description,
	}
	if err := database.Create(&tenant).Error; err != nil {
		return nil, err
	}
	logger.Info().Str("tenant_id", tenant.ID).Str("name", tenant.Name).Msg("tenant created")
	return &tenant, nil
}

func is404(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
