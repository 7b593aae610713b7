/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/listafacil/apiserver/config"
	"github.com/listafacil/apiserver/internal/db"
	"github.com/listafacil/apiserver/internal/store"
	"github.com/listafacil/apiserver/types"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	seedUsername string
	seedEmail    string
	seedPassword string
	seedFullName string
)

// seedAdminCmd creates the first admin account so the dashboard can be
// reached on a fresh install.
var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the initial admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		users := store.NewUserRepository(conn)

		taken, err := users.UsernameOrEmailTaken(cmd.Context(), seedUsername, seedEmail, 0)
		if err != nil {
			return fmt.Errorf("check existing accounts: %w", err)
		}
		if taken {
			return fmt.Errorf("an account named %q already exists", seedUsername)
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(seedPassword), 12)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		admin, err := users.Create(cmd.Context(), types.User{
			Username:     seedUsername,
			Email:        seedEmail,
			FullName:     seedFullName,
			Role:         types.RoleAdmin,
			PasswordHash: string(hashed),
			IsActive:     true,
		})
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}

		fmt.Printf("admin %q created (id %d)\n", admin.Username, admin.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedAdminCmd)

	seedAdminCmd.Flags().StringVar(&seedUsername, "username", "admin", "admin username")
	seedAdminCmd.Flags().StringVar(&seedEmail, "email", "admin@example.com", "admin email")
	seedAdminCmd.Flags().StringVar(&seedPassword, "password", "", "admin password (required)")
	seedAdminCmd.Flags().StringVar(&seedFullName, "full-name", "Administrator", "admin display name")
	_ = seedAdminCmd.MarkFlagRequired("password")
}
