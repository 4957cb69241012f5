package storage

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/ports"
)

// CachedGuidelines keeps recently resolved guidelines in memory.
// Guidelines are immutable once stored, so entries only expire by TTL.
type CachedGuidelines struct {
	next  ports.GuidelineRepository
	cache *cache.Cache
}

var _ ports.GuidelineRepository = (*CachedGuidelines)(nil)

// NewCachedGuidelines wraps next with a TTL cache keyed by guideline id.
func NewCachedGuidelines(next ports.GuidelineRepository, ttl time.Duration) *CachedGuidelines {
	return &CachedGuidelines{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// GetGuidelines serves cached ids and loads the rest in one query, keeping the caller's order.
func (c *CachedGuidelines) GetGuidelines(ctx context.Context, ids []string) ([]domain.Guideline, error) {
	found := make(map[string]domain.Guideline, len(ids))
	var missing []string
	for _, id := range ids {
		if v, ok := c.cache.Get(id); ok {
			found[id] = v.(domain.Guideline)
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		loaded, err := c.next.GetGuidelines(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, g := range loaded {
			c.cache.SetDefault(g.ID, g)
			found[g.ID] = g
		}
	}

	out := make([]domain.Guideline, 0, len(found))
	for _, id := range ids {
		if g, ok := found[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

// GetGuideline checks the cache before the repository.
func (c *CachedGuidelines) GetGuideline(ctx context.Context, id string) (domain.Guideline, error) {
	if v, ok := c.cache.Get(id); ok {
		return v.(domain.Guideline), nil
	}
	g, err := c.next.GetGuideline(ctx, id)
	if err != nil {
		return domain.Guideline{}, err
	}
	c.cache.SetDefault(id, g)
	return g, nil
}

// CreateGuideline stores the guideline and caches the stored row as read back, so
// cached and uncached lookups return identical values.
func (c *CachedGuidelines) CreateGuideline(ctx context.Context, guideline *domain.Guideline) error {
	if err := c.next.CreateGuideline(ctx, guideline); err != nil {
		return err
	}
	stored, err := c.next.GetGuideline(ctx, guideline.ID)
	if err != nil {
		c.cache.Delete(guideline.ID)
		return nil
	}
	*guideline = stored
	c.cache.SetDefault(stored.ID, stored)
	return nil
}

// ListGuidelines is not cached; listings must reflect new uploads immediately.
func (c *CachedGuidelines) ListGuidelines(ctx context.Context, filter domain.GuidelineFilter) ([]domain.Guideline, error) {
	return c.next.ListGuidelines(ctx, filter)
}
