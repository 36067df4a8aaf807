package storefront

import (
	"context"

	"github.com/tbourn/media-tracker/internal/resilience"
)

type searchResult struct {
	id string
	ok bool
}

type guarded struct {
	next StoreClient
	cb   *resilience.Breaker
}

// WithBreaker routes every remote call of next through cb. Misses and absent
// prices count as successes; only faults move the breaker toward open.
func WithBreaker(next StoreClient, cb *resilience.Breaker) StoreClient {
	return &guarded{next: next, cb: cb}
}

func (g *guarded) SupportedRegions() []string { return g.next.SupportedRegions() }

func (g *guarded) SearchIdentifier(ctx context.Context, region, title string) (string, bool, error) {
	res, err := resilience.Do(ctx, g.cb, func() (searchResult, error) {
		id, ok, err := g.next.SearchIdentifier(ctx, region, title)
		return searchResult{id: id, ok: ok}, err
	})
	if err != nil {
		return "", false, err
	}
	return res.id, res.ok, nil
}

func (g *guarded) GetPrice(ctx context.Context, region, identifier string) (*Price, error) {
	return resilience.Do(ctx, g.cb, func() (*Price, error) {
		return g.next.GetPrice(ctx, region, identifier)
	})
}
