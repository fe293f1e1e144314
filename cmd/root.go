/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/fundraiseer/apiserver/config"
	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apiserver",
	Short: "Fundraiseer crowdfunding API",
	Long: `Fundraiseer crowdfunding API server and its operational commands.

	apiserver server
	apiserver migrate up
	apiserver admin create --email admin@example.com --name Admin --password ...
	apiserver reconcile
	apiserver mailer
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()
		logger.Init(cfg.LogLevel, cfg.IsDev())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
