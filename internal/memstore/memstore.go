// Package memstore is an in-process persistence backend. Transactions are
// serialized by a single mutex and roll back by restoring a snapshot.
package memstore

import (
	"context"
	"sync"

	"github.com/fundraiseer/apiserver/types"
)

type txKey struct{}

// Store holds every collection of the in-memory backend.
type Store struct {
	mu        sync.Mutex
	users     map[string]types.User
	campaigns map[string]types.Campaign
	donations map[string]types.Donation
	comments  map[string]types.Comment
	contacts  map[string]types.Contact
	// seq orders records created within the same clock tick.
	seq   int64
	order map[string]int64
}

func New() *Store {
	return &Store{
		users:     map[string]types.User{},
		campaigns: map[string]types.Campaign{},
		donations: map[string]types.Donation{},
		comments:  map[string]types.Comment{},
		contacts:  map[string]types.Contact{},
		order:     map[string]int64{},
	}
}

// WithinTx runs fn holding the store lock. Any error restores the state
// captured before fn ran.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock acquires the store lock unless ctx already runs inside a transaction
// of this store. The returned func releases it.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) nextSeq(id string) {
	s.seq++
	s.order[id] = s.seq
}

type snapshot struct {
	users     map[string]types.User
	campaigns map[string]types.Campaign
	donations map[string]types.Donation
	comments  map[string]types.Comment
	contacts  map[string]types.Contact
	seq       int64
	order     map[string]int64
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		users:     make(map[string]types.User, len(s.users)),
		campaigns: make(map[string]types.Campaign, len(s.campaigns)),
		donations: make(map[string]types.Donation, len(s.donations)),
		comments:  make(map[string]types.Comment, len(s.comments)),
		contacts:  make(map[string]types.Contact, len(s.contacts)),
		seq:       s.seq,
		order:     make(map[string]int64, len(s.order)),
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.campaigns {
		snap.campaigns[k] = cloneCampaign(v)
	}
	for k, v := range s.donations {
		snap.donations[k] = v
	}
	for k, v := range s.comments {
		snap.comments[k] = v
	}
	for k, v := range s.contacts {
		snap.contacts[k] = v
	}
	for k, v := range s.order {
		snap.order[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.users = snap.users
	s.campaigns = snap.campaigns
	s.donations = snap.donations
	s.comments = snap.comments
	s.contacts = snap.contacts
	s.seq = snap.seq
	s.order = snap.order
}

func cloneCampaign(c types.Campaign) types.Campaign {
	c.MediaURLs = append([]string(nil), c.MediaURLs...)
	c.CommentIDs = append([]string(nil), c.CommentIDs...)
	if c.ModeratedAt != nil {
		t := *c.ModeratedAt
		c.ModeratedAt = &t
	}
	return c
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
