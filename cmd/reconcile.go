/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/fundraiseer/apiserver/config"
	"github.com/fundraiseer/apiserver/internal/server"
	"github.com/fundraiseer/apiserver/internal/services"
	"github.com/fundraiseer/apiserver/types"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var reconcileCampaignID string

// reconcileCmd recomputes cached campaign totals from the donation ledger.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute campaign raised amounts from the donation ledger",
	Long: `Recompute every campaign's raised amount and funding status from its
donations and print what changed. Safe to run repeatedly.

	apiserver reconcile
	apiserver reconcile --campaign <id>
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		backend, err := server.OpenBackend(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer backend.Close(cmd.Context())

		donations := services.NewDonationService(backend.Campaigns, backend.Donations, backend.Users, backend.Tx, nil)

		var report types.ReconcileReport
		if reconcileCampaignID != "" {
			change, err := donations.ReconcileCampaign(cmd.Context(), reconcileCampaignID)
			if err != nil {
				return err
			}
			report = types.ReconcileReport{Checked: 1, Changes: []types.ReconcileChange{}}
			if change != nil {
				report.Corrected = 1
				if change.Status == types.CampaignCompleted && change.PreviousStatus != types.CampaignCompleted {
					report.Completed = 1
				}
				report.Changes = append(report.Changes, *change)
			}
		} else {
			report, err = donations.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
		}

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().StringVar(&reconcileCampaignID, "campaign", "", "only reconcile this campaign")
}
