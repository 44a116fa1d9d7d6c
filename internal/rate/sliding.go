package rate

import (
	"context"
	"strconv"
	"time"

	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/metrics"
	tokens "github.com/dropDatabas3/credengine/internal/security/token"
)

// SlidingWindow: log de timestamps en un sorted set por acción+identidad.
// Más preciso que el fixed window en los bordes; se usa para los throttles
// de challenges (reenvío de OTP).
type SlidingWindow struct {
	Store    cache.Client
	Policies map[string]Policy
	Now      func() time.Time
}

func NewSlidingWindow(store cache.Client, policies map[string]Policy) *SlidingWindow {
	return &SlidingWindow{Store: store, Policies: policies, Now: time.Now}
}

func slidingKey(action, id string) string { return cache.Key("rls", action, id) }

func (l *SlidingWindow) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

func (l *SlidingWindow) Check(ctx context.Context, s Subject, action string) Result {
	p := l.Policies[action]
	if p.Limit <= 0 || p.Window <= 0 {
		metrics.RateDecisions.WithLabelValues(action, "bypass").Inc()
		return Result{Allowed: true, Unlimited: true, Remaining: -1}
	}
	key := slidingKey(action, s.ID)
	now := l.now()
	cutoff := micros(now.Add(-p.Window))

	// podar lo que salió de la ventana (score <= cutoff)
	if _, err := l.Store.ZRemRangeByScore(ctx, key, "-inf", formatScore(cutoff)); err != nil {
		return failOpen(ctx, action, p, err)
	}
	count, err := l.Store.ZCard(ctx, key)
	if err != nil {
		return failOpen(ctx, action, p, err)
	}

	if count >= p.Limit {
		res := Result{Allowed: false, Remaining: 0, Limit: p.Limit, CurrentHits: count}
		oldest, err := l.Store.ZRangeWithScores(ctx, key, 0, 0)
		if err == nil && len(oldest) == 1 {
			free := time.UnixMicro(int64(oldest[0].Score)).Add(p.Window)
			res.ResetAt = free
			res.RetryAfter = free.Sub(now)
		}
		if res.RetryAfter <= 0 {
			res.RetryAfter = p.Window
			res.ResetAt = now.Add(p.Window)
		}
		record(action, res)
		return res
	}

	suffix, err := tokens.GenerateOpaqueToken(16)
	if err != nil {
		suffix = strconv.FormatInt(count, 10)
	}
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + suffix
	if err := l.Store.ZAdd(ctx, key, cache.Z{Score: micros(now), Member: member}); err != nil {
		return failOpen(ctx, action, p, err)
	}
	if _, err := l.Store.Expire(ctx, key, p.Window); err != nil {
		return failOpen(ctx, action, p, err)
	}

	res := Result{
		Allowed:     true,
		Remaining:   p.Limit - count - 1,
		Limit:       p.Limit,
		CurrentHits: count + 1,
		ResetAt:     now.Add(p.Window),
	}
	record(action, res)
	return res
}
