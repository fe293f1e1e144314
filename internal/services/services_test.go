package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fundraiseer/apiserver/internal/cache"
	"github.com/fundraiseer/apiserver/internal/memstore"
	"github.com/fundraiseer/apiserver/types"
	"github.com/stretchr/testify/require"
)

const testPassword = "password123"

type recordingNotifier struct {
	mu   sync.Mutex
	sent []types.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification types.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *recordingNotifier) last(typ string) (types.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Type == typ {
			return n.sent[i], true
		}
	}
	return types.Notification{}, false
}

type fixture struct {
	store     *memstore.Store
	userRepo  *memstore.UserRepository
	campRepo  *memstore.CampaignRepository
	donRepo   *memstore.DonationRepository
	notifier  *recordingNotifier
	users     *UserService
	auth      *AuthService
	campaigns *CampaignService
	donations *DonationService
	comments  *CommentService
	contacts  *ContactService
	dashboard *DashboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := memstore.New()
	f := &fixture{
		store:    s,
		userRepo: memstore.NewUserRepository(s),
		campRepo: memstore.NewCampaignRepository(s),
		donRepo:  memstore.NewDonationRepository(s),
		notifier: &recordingNotifier{},
	}
	comments := memstore.NewCommentRepository(s)
	contacts := memstore.NewContactRepository(s)

	f.users = NewUserService(f.userRepo, s, f.notifier)
	f.auth = NewAuthService(f.users, f.userRepo, cache.NewMemory(), f.notifier, time.Minute)
	f.campaigns = NewCampaignService(f.campRepo, f.userRepo, f.donRepo, s)
	f.donations = NewDonationService(f.campRepo, f.donRepo, f.userRepo, s, f.notifier)
	f.comments = NewCommentService(comments, f.campRepo, f.userRepo, s)
	f.contacts = NewContactService(contacts, s, f.notifier)
	f.dashboard = NewDashboardService(f.userRepo, f.campRepo, f.donRepo, f.campaigns, f.donations, f.contacts)
	return f
}

func (f *fixture) user(t *testing.T, email, role string) types.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), email, "Test "+role, testPassword, role)
	require.NoError(t, err)
	return u
}

// campaign stores a campaign directly, bypassing moderation.
func (f *fixture) campaign(t *testing.T, creatorID, status string, goal float64) types.Campaign {
	t.Helper()
	c, err := f.campRepo.Create(context.Background(), types.Campaign{
		Title:               "Clean water",
		Description:         "Wells for the village",
		Category:            "community",
		GoalAmount:          goal,
		Deadline:            time.Now().Add(30 * 24 * time.Hour),
		Status:              status,
		CreatorID:           creatorID,
		FundUtilizationPlan: "Drilling and pumps",
	})
	require.NoError(t, err)
	return c
}
