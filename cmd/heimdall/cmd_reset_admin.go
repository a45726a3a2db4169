/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/models"
)

var (
	resetAdminEmail    string
	resetAdminPassword string
	resetAdminTenant   string
)

var resetAdminCmd = &cobra.Command{
	Use:   "reset-admin",
	Short: "Create or reset an admin account",
	Long: `Create an admin user, or reset the password of an existing one.
Useful for first-time setup and for recovering a locked-out deployment.

Examples:
  heimdall reset-admin --email ops@example.com --password 'correct horse'
  heimdall reset-admin --email ops@example.com --password '...' --tenant <tenant-id>`,
	RunE: runResetAdmin,
}

func init() {
	resetAdminCmd.Flags().StringVar(&resetAdminEmail, "email", "", "Admin email (required)")
	resetAdminCmd.Flags().StringVar(&resetAdminPassword, "password", "", "New password, minimum 8 characters (required)")
	resetAdminCmd.Flags().StringVar(&resetAdminTenant, "tenant", "", "Tenant ID to scope the account to (default: platform-wide)")
	resetAdminCmd.MarkFlagRequired("email")
	resetAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(resetAdminCmd)
}

func runResetAdmin(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(resetAdminEmail))
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", resetAdminEmail)
	}
	if len(resetAdminPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(resetAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var user models.User
	err = database.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		user.Password = string(hash)
		user.Role = models.RoleAdmin
		if resetAdminTenant != "" {
			user.TenantID = resetAdminTenant
		}
		if err := database.Save(&user).Error; err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		logger.Info().Str("user_id", user.ID).Str("email", email).Msg("admin password reset")
		fmt.Printf("Password reset for %s\n", email)

	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			ID:       uuid.NewString(),
			Email:    email,
			Password: string(hash),
			Role:     models.RoleAdmin,
			TenantID: resetAdminTenant,
		}
		if err := database.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		logger.Info().Str("user_id", user.ID).Str("email", email).Msg("admin account created")
		fmt.Printf("Admin account created for %s\n", email)

	default:
		return fmt.Errorf("look up user: %w", err)
	}

	return nil
}
