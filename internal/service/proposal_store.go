package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/seating-api/internal/seating"
	appErrors "github.com/noah-isme/seating-api/pkg/errors"
)

const proposalKeyPrefix = "seating:proposal:"

// SeatingProposal is a generated seating kept until it is saved or expires.
// It carries its inputs so it can be regenerated with another seed.
type SeatingProposal struct {
	ID        string            `json:"id"`
	ClassID   string            `json:"classId,omitempty"`
	Grid      seating.Grid      `json:"grid"`
	Students  []seating.Student `json:"students"`
	Pairs     []seating.Pair    `json:"pairs"`
	Order     []seating.Seat    `json:"order,omitempty"`
	Seed      *int64            `json:"seed,omitempty"`
	Plan      *seating.Plan     `json:"plan"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ProposalStore keeps proposals between generate and save. Get returns
// appErrors.ErrCacheMiss for unknown or expired ids.
type ProposalStore interface {
	Save(ctx context.Context, proposal *SeatingProposal) error
	Get(ctx context.Context, id string) (*SeatingProposal, error)
	Delete(ctx context.Context, id string) error
}

type memoryProposalStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]*SeatingProposal
}

// NewMemoryProposalStore keeps proposals in process memory.
func NewMemoryProposalStore(ttl time.Duration) ProposalStore {
	return &memoryProposalStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]*SeatingProposal),
	}
}

func (s *memoryProposalStore) Save(_ context.Context, proposal *SeatingProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ID] = proposal
	s.evictExpiredLocked()
	return nil
}

func (s *memoryProposalStore) Get(ctx context.Context, id string) (*SeatingProposal, error) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	if s.expired(proposal) {
		_ = s.Delete(ctx, id)
		return nil, appErrors.ErrCacheMiss
	}
	return proposal, nil
}

func (s *memoryProposalStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

func (s *memoryProposalStore) expired(p *SeatingProposal) bool {
	return s.ttl > 0 && s.now().Sub(p.CreatedAt) > s.ttl
}

func (s *memoryProposalStore) evictExpiredLocked() {
	for id, p := range s.items {
		if s.expired(p) {
			delete(s.items, id)
		}
	}
}

type cacheProposalStore struct {
	cache *CacheService
	ttl   time.Duration
}

// NewCacheProposalStore keeps proposals in the shared Redis cache so any
// replica can serve them.
func NewCacheProposalStore(cache *CacheService, ttl time.Duration) ProposalStore {
	return &cacheProposalStore{cache: cache, ttl: ttl}
}

func (s *cacheProposalStore) Save(ctx context.Context, proposal *SeatingProposal) error {
	return s.cache.Set(ctx, proposalKeyPrefix+proposal.ID, proposal, s.ttl)
}

func (s *cacheProposalStore) Get(ctx context.Context, id string) (*SeatingProposal, error) {
	var proposal SeatingProposal
	hit, err := s.cache.Get(ctx, proposalKeyPrefix+id, &proposal)
	if err != nil {
		return nil, err
	}
	if !hit {
		return nil, appErrors.ErrCacheMiss
	}
	return &proposal, nil
}

func (s *cacheProposalStore) Delete(ctx context.Context, id string) error {
	return s.cache.Invalidate(ctx, proposalKeyPrefix+id)
}
