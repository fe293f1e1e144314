package server

import (
	"context"
	"fmt"
	"time"

	"github.com/fundraiseer/apiserver/config"
	"github.com/fundraiseer/apiserver/internal/cache"
	"github.com/fundraiseer/apiserver/internal/db"
	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/memstore"
	"github.com/fundraiseer/apiserver/internal/mongostore"
	"github.com/fundraiseer/apiserver/internal/mq"
	"github.com/fundraiseer/apiserver/internal/services"
	"github.com/fundraiseer/apiserver/internal/store"
)

// Backend bundles the repositories of one persistence driver.
type Backend struct {
	Users     services.UserRepository
	Campaigns services.CampaignRepository
	Donations services.DonationRepository
	Comments  services.CommentRepository
	Contacts  services.ContactRepository
	Tx        services.Transactor

	close func(ctx context.Context) error
}

// Close releases the underlying connections.
func (b *Backend) Close(ctx context.Context) error {
	if b.close == nil {
		return nil
	}
	return b.close(ctx)
}

// OpenBackend connects to the driver selected by cfg.Database.Driver.
func OpenBackend(ctx context.Context, cfg config.Config) (*Backend, error) {
	switch cfg.Database.Driver {
	case "", "postgres":
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return &Backend{
			Users:     store.NewUserRepository(conn),
			Campaigns: store.NewCampaignRepository(conn),
			Donations: store.NewDonationRepository(conn),
			Comments:  store.NewCommentRepository(conn),
			Contacts:  store.NewContactRepository(conn),
			Tx:        store.NewTxManager(conn),
			close:     func(context.Context) error { return conn.Close() },
		}, nil
	case "mongo":
		client, err := db.OpenMongo(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		s := mongostore.New(client, cfg.Mongo.Database)
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return &Backend{
			Users:     mongostore.NewUserRepository(s),
			Campaigns: mongostore.NewCampaignRepository(s),
			Donations: mongostore.NewDonationRepository(s),
			Comments:  mongostore.NewCommentRepository(s),
			Contacts:  mongostore.NewContactRepository(s),
			Tx:        s,
			close:     client.Disconnect,
		}, nil
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// NewMemoryBackend returns a process-local backend. Data is lost on exit.
func NewMemoryBackend() *Backend {
	s := memstore.New()
	return &Backend{
		Users:     memstore.NewUserRepository(s),
		Campaigns: memstore.NewCampaignRepository(s),
		Donations: memstore.NewDonationRepository(s),
		Comments:  memstore.NewCommentRepository(s),
		Contacts:  memstore.NewContactRepository(s),
		Tx:        s,
	}
}

// Cache is the short-lived state store: OTPs and rate limit counters.
type Cache interface {
	services.OTPStore
	cache.Counter
}

// OpenCache connects to Redis when an address is configured and falls back
// to process memory otherwise.
func OpenCache(ctx context.Context, cfg config.RedisConfig) (Cache, func() error, error) {
	if cfg.Addr == "" {
		return cache.NewMemory(), func() error { return nil }, nil
	}
	rdb, err := cache.NewRedis(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open redis: %w", err)
	}
	return rdb, rdb.Close, nil
}

// OpenNotifier publishes notifications on the configured broker. Without a
// broker notifications are only logged.
func OpenNotifier(ctx context.Context, cfg config.Config) (services.Notifier, func() error, error) {
	backend, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return nil, nil, fmt.Errorf("open mq: %w", err)
	}
	if backend == nil {
		logger.FromContext(ctx).Warn("no message queue configured, notifications will only be logged")
		return mq.LogNotifier{ShowSecrets: cfg.IsDev()}, func() error { return nil }, nil
	}
	return mq.NewNotifier(backend, cfg.MQ.NotificationChannel), backend.Close, nil
}

// Services holds the domain services wired to one backend.
type Services struct {
	Users     *services.UserService
	Auth      *services.AuthService
	Campaigns *services.CampaignService
	Donations *services.DonationService
	Comments  *services.CommentService
	Contacts  *services.ContactService
	Dashboard *services.DashboardService
}

// NewServices wires the domain services.
func NewServices(b *Backend, otps services.OTPStore, notifier services.Notifier, otpTTL time.Duration) *Services {
	users := services.NewUserService(b.Users, b.Tx, notifier)
	campaigns := services.NewCampaignService(b.Campaigns, b.Users, b.Donations, b.Tx)
	donations := services.NewDonationService(b.Campaigns, b.Donations, b.Users, b.Tx, notifier)
	contacts := services.NewContactService(b.Contacts, b.Tx, notifier)
	return &Services{
		Users:     users,
		Auth:      services.NewAuthService(users, b.Users, otps, notifier, otpTTL),
		Campaigns: campaigns,
		Donations: donations,
		Comments:  services.NewCommentService(b.Comments, b.Campaigns, b.Users, b.Tx),
		Contacts:  contacts,
		Dashboard: services.NewDashboardService(b.Users, b.Campaigns, b.Donations, campaigns, donations, contacts),
	}
}
