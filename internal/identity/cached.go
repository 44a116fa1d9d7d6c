package identity

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cached pone un cache read-through de vida corta delante de otro Store.
// Las escrituras pasan directo e invalidan la entrada.
type Cached struct {
	next Store
	c    *gocache.Cache
}

func NewCached(next Store, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cached{next: next, c: gocache.New(ttl, 2*ttl)}
}

func (c *Cached) get(k string) (*Record, bool) {
	v, ok := c.c.Get(k)
	if !ok {
		return nil, false
	}
	r := *(v.(*Record))
	return &r, true
}

func (c *Cached) put(r *Record) {
	cp := *r
	c.c.SetDefault("id:"+r.ID, &cp)
	c.c.SetDefault("email:"+NormalizeEmail(r.Email), &cp)
}

func (c *Cached) evict(id string) {
	if r, ok := c.get("id:" + id); ok {
		c.c.Delete("email:" + NormalizeEmail(r.Email))
	}
	c.c.Delete("id:" + id)
}

func (c *Cached) FindByEmail(ctx context.Context, email string) (*Record, error) {
	if r, ok := c.get("email:" + NormalizeEmail(email)); ok {
		return r, nil
	}
	r, err := c.next.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	c.put(r)
	return r, nil
}

func (c *Cached) FindByID(ctx context.Context, id string) (*Record, error) {
	if r, ok := c.get("id:" + id); ok {
		return r, nil
	}
	r, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(r)
	return r, nil
}

func (c *Cached) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	defer c.evict(id)
	return c.next.UpdatePassword(ctx, id, passwordHash)
}

func (c *Cached) MarkEmailVerified(ctx context.Context, id string) error {
	defer c.evict(id)
	return c.next.MarkEmailVerified(ctx, id)
}
