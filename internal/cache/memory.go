package cache

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// memoryClient implementa Client usando un map en memoria.
// Útil para desarrollo y testing: el reloj es inyectable para poder
// avanzar el tiempo sin sleeps.
type memoryClient struct {
	prefix string
	now    func() time.Time
	data   map[string]*memoryEntry
	mu     sync.Mutex
	hits   int64
	misses int64
}

type memoryEntry struct {
	str       string
	zset      map[string]float64 // nil para valores string
	expiresAt time.Time          // zero = no expira
}

func (e *memoryEntry) isZSet() bool { return e.zset != nil }

// NewMemory crea un cliente en memoria con reloj real.
func NewMemory(prefix string) *memoryClient {
	return NewMemoryWithClock(prefix, time.Now)
}

// NewMemoryWithClock crea un cliente en memoria con el reloj dado.
func NewMemoryWithClock(prefix string, now func() time.Time) *memoryClient {
	if now == nil {
		now = time.Now
	}
	return &memoryClient{
		prefix: prefix,
		now:    now,
		data:   make(map[string]*memoryEntry),
	}
}

func (c *memoryClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// lookup devuelve la entrada viva o nil, borrando la expirada. Requiere lock.
func (c *memoryClient) lookup(k string) *memoryEntry {
	e, ok := c.data[k]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.data, k)
		return nil
	}
	return e
}

func (c *memoryClient) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

func (c *memoryClient) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.lookup(c.key(key))
	if e == nil {
		c.misses++
		return "", ErrNotFound
	}
	if e.isZSet() {
		return "", ErrWrongType
	}
	c.hits++
	return e.str, nil
}

func (c *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[c.key(key)] = &memoryEntry{str: value, expiresAt: c.expiry(ttl)}
	return nil
}

func (c *memoryClient) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache: setex requires a positive ttl, got %s", ttl)
	}
	return c.Set(ctx, key, value, ttl)
}

func (c *memoryClient) Del(ctx context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		full := c.key(k)
		if c.lookup(full) != nil {
			delete(c.data, full)
			n++
		}
	}
	return n, nil
}

func (c *memoryClient) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	full := c.key(key)
	e := c.lookup(full)
	if e == nil {
		c.data[full] = &memoryEntry{str: "1"}
		return 1, nil
	}
	if e.isZSet() {
		return 0, ErrWrongType
	}
	n, err := strconv.ParseInt(e.str, 10, 64)
	if err != nil {
		return 0, ErrNotInt
	}
	n++
	e.str = strconv.FormatInt(n, 10)
	return n, nil
}

func (c *memoryClient) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	full := c.key(key)
	e := c.lookup(full)
	if e == nil {
		return false, nil
	}
	if ttl <= 0 {
		delete(c.data, full)
		return true, nil
	}
	e.expiresAt = c.now().Add(ttl)
	return true, nil
}

func (c *memoryClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.lookup(c.key(key))
	if e == nil {
		return 0, ErrNotFound
	}
	if e.expiresAt.IsZero() {
		return NoExpiry, nil
	}
	return e.expiresAt.Sub(c.now()), nil
}

func (c *memoryClient) ZAdd(ctx context.Context, key string, members ...Z) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	full := c.key(key)
	e := c.lookup(full)
	if e == nil {
		e = &memoryEntry{zset: make(map[string]float64)}
		c.data[full] = e
	} else if !e.isZSet() {
		return ErrWrongType
	}
	for _, m := range members {
		e.zset[m.Member] = m.Score
	}
	return nil
}

// sorted devuelve los miembros ordenados por score y luego lexicográficamente.
func (e *memoryEntry) sorted() []Z {
	out := make([]Z, 0, len(e.zset))
	for m, s := range e.zset {
		out = append(out, Z{Score: s, Member: m})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out
}

func (c *memoryClient) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Z, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.lookup(c.key(key))
	if e == nil {
		return []Z{}, nil
	}
	if !e.isZSet() {
		return nil, ErrWrongType
	}
	all := e.sorted()
	n := int64(len(all))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return []Z{}, nil
	}
	return all[start : stop+1], nil
}

func (c *memoryClient) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	zs, err := c.ZRangeWithScores(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(zs))
	for i, z := range zs {
		out[i] = z.Member
	}
	return out, nil
}

func (c *memoryClient) ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error) {
	lo, loExcl, err := parseScoreBound(min)
	if err != nil {
		return 0, err
	}
	hi, hiExcl, err := parseScoreBound(max)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	full := c.key(key)
	e := c.lookup(full)
	if e == nil {
		return 0, nil
	}
	if !e.isZSet() {
		return 0, ErrWrongType
	}
	var n int64
	for m, s := range e.zset {
		aboveLo := s > lo || (!loExcl && s == lo)
		belowHi := s < hi || (!hiExcl && s == hi)
		if aboveLo && belowHi {
			delete(e.zset, m)
			n++
		}
	}
	// Redis borra los sorted sets vacíos
	if len(e.zset) == 0 {
		delete(c.data, full)
	}
	return n, nil
}

func (c *memoryClient) ZCard(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.lookup(c.key(key))
	if e == nil {
		return 0, nil
	}
	if !e.isZSet() {
		return 0, ErrWrongType
	}
	return int64(len(e.zset)), nil
}

func (c *memoryClient) Ping(ctx context.Context) error {
	return nil
}

func (c *memoryClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*memoryEntry)
	return nil
}

func (c *memoryClient) Stats(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Contar solo keys no expiradas
	var count int64
	for k := range c.data {
		if c.lookup(k) != nil {
			count++
		}
	}

	return Stats{
		Driver: "memory",
		Keys:   count,
		Hits:   c.hits,
		Misses: c.misses,
	}, nil
}

// parseScoreBound interpreta "-inf", "+inf", "(123.5" y "123.5".
func parseScoreBound(s string) (v float64, exclusive bool, err error) {
	s = strings.TrimSpace(s)
	switch s {
	case "-inf":
		return math.Inf(-1), false, nil
	case "+inf", "inf":
		return math.Inf(1), false, nil
	}
	if strings.HasPrefix(s, "(") {
		exclusive = true
		s = s[1:]
	}
	v, err = strconv.ParseFloat(s, 64)
	return v, exclusive, err
}
