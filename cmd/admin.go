/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fundraiseer/apiserver/config"
	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/server"
	"github.com/fundraiseer/apiserver/internal/services"
	"github.com/fundraiseer/apiserver/types"
	"github.com/spf13/cobra"
)

var (
	adminEmail    string
	adminName     string
	adminPassword string
)

// adminCmd groups out-of-band account provisioning.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator account",
	Long: `Create an administrator account directly in the database. Use it to
provision the first admin; further admins can be created through the API.

	apiserver admin create --email admin@example.com --name "Site Admin"

The password is read from --password or the ADMIN_PASSWORD environment variable.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := adminPassword
		if password == "" {
			password = os.Getenv("ADMIN_PASSWORD")
		}
		if adminEmail == "" || adminName == "" || password == "" {
			return errors.New("--email, --name and a password are required")
		}

		cfg := config.LoadConfig()
		backend, err := server.OpenBackend(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer backend.Close(cmd.Context())

		users := services.NewUserService(backend.Users, backend.Tx, nil)
		user, err := users.Create(cmd.Context(), adminEmail, adminName, password, types.RoleAdmin)
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		logger.Default().WithField("user", user.ID).WithField("email", user.Email).Info("admin account created")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "admin email address")
	adminCreateCmd.Flags().StringVar(&adminName, "name", "", "admin display name")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "admin password (defaults to $ADMIN_PASSWORD)")
}
