package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/metrics"
	"github.com/fundraiseer/apiserver/types"
	"github.com/sirupsen/logrus"
)

// DonationReceipt is the outcome of an accepted donation.
type DonationReceipt struct {
	Donation types.Donation     `json:"donation"`
	Campaign types.CampaignView `json:"campaign"`
}

// DonationService owns the donation ledger and the raised-amount aggregate.
type DonationService struct {
	campaigns CampaignRepository
	donations DonationRepository
	users     UserRepository
	tx        Transactor
	notifier  Notifier
	now       func() time.Time
}

func NewDonationService(
	campaigns CampaignRepository,
	donations DonationRepository,
	users UserRepository,
	tx Transactor,
	notifier Notifier,
) *DonationService {
	return &DonationService{
		campaigns: campaigns,
		donations: donations,
		users:     users,
		tx:        tx,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Donate records a donation and recomputes the campaign's raised amount from
// the ledger in the same transaction. The campaign row is locked first so
// concurrent donations to one campaign serialize.
func (s *DonationService) Donate(ctx context.Context, campaignID, userID string, amount float64) (DonationReceipt, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		metrics.DonationsRejected.WithLabelValues("invalid_amount").Inc()
		return DonationReceipt{}, ErrInvalidAmount
	}
	amount = types.RoundCents(amount)
	if amount <= 0 {
		metrics.DonationsRejected.WithLabelValues("invalid_amount").Inc()
		return DonationReceipt{}, ErrInvalidAmount
	}

	var (
		donation types.Donation
		campaign types.Campaign
		previous string
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		campaign, err = s.campaigns.GetForUpdate(ctx, campaignID)
		if err != nil {
			return campaignLookupError(err)
		}
		if campaign.Status != types.CampaignApproved {
			return ErrCampaignNotAcceptingDonations
		}
		if campaign.CreatorID == userID {
			return ErrSelfDonation
		}
		if !campaign.Deadline.IsZero() && s.now().After(campaign.Deadline) {
			return ErrCampaignExpired
		}

		donation, err = s.donations.Create(ctx, types.Donation{
			CampaignID: campaign.ID,
			UserID:     userID,
			Amount:     amount,
		})
		if err != nil {
			return fmt.Errorf("create donation: %w", err)
		}

		sum, err := s.donations.SumByCampaign(ctx, campaign.ID)
		if err != nil {
			return fmt.Errorf("sum donations: %w", err)
		}
		previous = campaign.Status
		settle(&campaign, sum)

		campaign, err = s.campaigns.Update(ctx, campaign)
		if err != nil {
			return fmt.Errorf("update campaign: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.DonationsRejected.WithLabelValues(rejectionReason(err)).Inc()
		return DonationReceipt{}, err
	}

	metrics.DonationsTotal.Inc()
	metrics.DonatedAmount.Add(amount)
	if previous != campaign.Status {
		metrics.CampaignTransitions.WithLabelValues(previous, campaign.Status).Inc()
	}
	logger.FromContext(ctx).WithFields(logrus.Fields{
		"campaign": campaign.ID,
		"amount":   amount,
		"raised":   campaign.RaisedAmount,
		"status":   campaign.Status,
	}).Info("donation accepted")

	if donor, err := s.users.GetByID(ctx, userID); err == nil {
		notify(ctx, s.notifier, types.Notification{
			Type: types.NotificationDonationReceived,
			To:   donor.Email,
			Name: donor.Name,
			Data: map[string]string{
				"campaignId":    campaign.ID,
				"campaignTitle": campaign.Title,
				"amount":        strconv.FormatFloat(amount, 'f', 2, 64),
			},
		})
	}

	return DonationReceipt{
		Donation: donation,
		Campaign: types.NewCampaignView(campaign, s.now()),
	}, nil
}

// Reconcile recomputes the raised amount and funding status of every campaign
// from the ledger. Running it repeatedly yields the same result.
func (s *DonationService) Reconcile(ctx context.Context) (types.ReconcileReport, error) {
	ids, err := s.campaigns.ListIDs(ctx)
	if err != nil {
		return types.ReconcileReport{}, fmt.Errorf("list campaigns: %w", err)
	}

	report := types.ReconcileReport{Changes: []types.ReconcileChange{}}
	for _, id := range ids {
		change, err := s.ReconcileCampaign(ctx, id)
		if err != nil {
			if errors.Is(err, ErrCampaignNotFound) {
				continue
			}
			return report, fmt.Errorf("reconcile campaign %s: %w", id, err)
		}
		report.Checked++
		if change == nil {
			continue
		}
		report.Corrected++
		if change.Status == types.CampaignCompleted && change.PreviousStatus != types.CampaignCompleted {
			report.Completed++
		}
		report.Changes = append(report.Changes, *change)
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"checked":   report.Checked,
		"corrected": report.Corrected,
		"completed": report.Completed,
	}).Info("campaign totals reconciled")
	return report, nil
}

// ReconcileCampaign repairs a single campaign. It returns nil when the cached
// figures already match the ledger.
func (s *DonationService) ReconcileCampaign(ctx context.Context, campaignID string) (*types.ReconcileChange, error) {
	var change *types.ReconcileChange
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		campaign, err := s.campaigns.GetForUpdate(ctx, campaignID)
		if err != nil {
			return campaignLookupError(err)
		}
		sum, err := s.donations.SumByCampaign(ctx, campaign.ID)
		if err != nil {
			return fmt.Errorf("sum donations: %w", err)
		}

		before := campaign
		settle(&campaign, sum)
		if before.RaisedAmount == campaign.RaisedAmount && before.Status == campaign.Status {
			return nil
		}
		if _, err := s.campaigns.Update(ctx, campaign); err != nil {
			return fmt.Errorf("update campaign: %w", err)
		}
		change = &types.ReconcileChange{
			CampaignID:     campaign.ID,
			PreviousRaised: before.RaisedAmount,
			RaisedAmount:   campaign.RaisedAmount,
			PreviousStatus: before.Status,
			Status:         campaign.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if change != nil {
		metrics.ReconcileCorrections.Inc()
		if change.PreviousStatus != change.Status {
			metrics.CampaignTransitions.WithLabelValues(change.PreviousStatus, change.Status).Inc()
		}
	}
	return change, nil
}

// History lists a user's donations, newest first, with campaign titles.
func (s *DonationService) History(ctx context.Context, userID string) ([]types.DonationView, error) {
	donations, err := s.donations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	titles := map[string]string{}
	views := make([]types.DonationView, 0, len(donations))
	for _, d := range donations {
		title, ok := titles[d.CampaignID]
		if !ok {
			if c, err := s.campaigns.Get(ctx, d.CampaignID); err == nil {
				title = c.Title
			}
			titles[d.CampaignID] = title
		}
		views = append(views, types.DonationView{Donation: d, CampaignTitle: title})
	}
	return views, nil
}

// settle applies the ledger sum to c. An approved campaign that reaches its
// goal becomes completed; no other status is touched, so completed never regresses.
func settle(c *types.Campaign, sum float64) {
	c.RaisedAmount = types.RoundCents(sum)
	if c.Status == types.CampaignApproved && c.RaisedAmount >= c.GoalAmount {
		c.Status = types.CampaignCompleted
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrCampaignNotFound):
		return "not_found"
	case errors.Is(err, ErrCampaignNotAcceptingDonations):
		return "not_accepting"
	case errors.Is(err, ErrSelfDonation):
		return "self_donation"
	case errors.Is(err, ErrCampaignExpired):
		return "expired"
	default:
		return "error"
	}
}
