package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"token-vesting-service/models"
)

// MemoryStore keeps everything in process memory. Reads return copies, so callers may
// decorate results without touching stored state.
type MemoryStore struct {
	mu        sync.RWMutex
	grants    map[string]*models.Grant
	bySource  map[string]string
	campaigns map[string]*models.Campaign
	events    []*models.ClaimEvent

	locks *Locks
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		grants:    make(map[string]*models.Grant),
		bySource:  make(map[string]string),
		campaigns: make(map[string]*models.Campaign),
		locks:     NewLocks(),
	}
}

func (s *MemoryStore) CreateGrant(ctx context.Context, g *models.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.grants[g.ID]; exists {
		return ErrDuplicateGrant
	}
	if g.SourceRef != nil {
		if _, exists := s.bySource[*g.SourceRef]; exists {
			return ErrDuplicateGrant
		}
		s.bySource[*g.SourceRef] = g.ID
	}
	now := time.Now()
	g.CreatedAt, g.UpdatedAt = now, now
	s.grants[g.ID] = g.Clone()
	return nil
}

func (s *MemoryStore) GetGrant(ctx context.Context, id string) (*models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.grants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (s *MemoryStore) ListByBeneficiary(ctx context.Context, beneficiary string) ([]models.Grant, error) {
	return s.listGrants(func(g *models.Grant) bool { return g.Beneficiary == beneficiary }), nil
}

func (s *MemoryStore) ListByCampaign(ctx context.Context, campaignID string) ([]models.Grant, error) {
	return s.listGrants(func(g *models.Grant) bool { return g.CampaignID == campaignID }), nil
}

func (s *MemoryStore) ListByStatus(ctx context.Context, status models.GrantStatus) ([]models.Grant, error) {
	return s.listGrants(func(g *models.Grant) bool { return g.Status == status }), nil
}

func (s *MemoryStore) listGrants(match func(*models.Grant) bool) []models.Grant {
	s.mu.RLock()
	out := make([]models.Grant, 0)
	for _, g := range s.grants {
		if match(g) {
			out = append(out, *g.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].GrantedAt.Equal(out[j].GrantedAt) {
			return out[i].GrantedAt.Before(out[j].GrantedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UpdateGrant runs fn under the grant's lock. The store lock is not held while fn
// runs, so fn may read other records through the store.
func (s *MemoryStore) UpdateGrant(ctx context.Context, id string, fn UpdateFunc) (*models.Grant, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := s.GetGrant(ctx, id)
	if err != nil {
		return nil, err
	}
	working := current.Clone()
	event, err := fn(working)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.grants[id]
	stored.Status = working.Status
	stored.ClaimedAt = working.ClaimedAt
	stored.ExpiredAt = working.ExpiredAt
	stored.CompletedAt = working.CompletedAt
	stored.UpdatedAt = time.Now()
	if event != nil {
		event.CreatedAt = stored.UpdatedAt
		ev := *event
		s.events = append(s.events, &ev)
	}
	return stored.Clone(), nil
}

func (s *MemoryStore) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.campaigns {
		if existing.Slug == c.Slug {
			return ErrDuplicateCampaign
		}
	}
	if _, exists := s.campaigns[c.ID]; exists {
		return ErrDuplicateCampaign
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	s.campaigns[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCampaign(c), nil
}

func (s *MemoryStore) GetCampaignBySlug(ctx context.Context, slug string) (*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.campaigns {
		if c.Slug == slug {
			return cloneCampaign(c), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	s.mu.RLock()
	out := make([]models.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, *cloneCampaign(c))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SetCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	return cloneCampaign(c), nil
}

func (s *MemoryStore) PendingEvents(ctx context.Context, limit int) ([]models.ClaimEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ClaimEvent, 0)
	for _, ev := range s.events {
		if ev.DeliveredAt == nil {
			out = append(out, *ev)
		}
	}
	// events are appended in creation order
	sort.SliceStable(out, func(i, j int) bool { return out[i].Attempts < out[j].Attempts })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := s.findEvent(id)
	if ev == nil {
		return ErrNotFound
	}
	delivered := at
	ev.DeliveredAt = &delivered
	ev.Attempts++
	ev.LastError = ""
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := s.findEvent(id)
	if ev == nil {
		return ErrNotFound
	}
	ev.Attempts++
	ev.LastError = reason
	return nil
}

func (s *MemoryStore) findEvent(id string) *models.ClaimEvent {
	for _, ev := range s.events {
		if ev.ID == id {
			return ev
		}
	}
	return nil
}

func cloneCampaign(c *models.Campaign) *models.Campaign {
	cp := *c
	if c.ClaimDeadline != nil {
		d := *c.ClaimDeadline
		cp.ClaimDeadline = &d
	}
	return &cp
}
