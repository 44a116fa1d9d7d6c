// Package refresh mantiene UNA sola credencial refresh válida por identidad.
//
// El RefreshRecord (refresh:<id>) guarda el string completo de la última
// credencial emitida; rotar con una credencial anterior, aunque esté bien
// firmada y no haya expirado, falla con MISMATCH. Cada jti de refresh se
// marca al rotar (refresh:used:<jti>), así dos rotaciones concurrentes con la
// misma credencial no pueden ganar las dos.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/domain/errs"
	"github.com/dropDatabas3/credengine/internal/jwt"
	"github.com/dropDatabas3/credengine/internal/metrics"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
)

var (
	ErrInvalidOrExpired = errs.New(errs.Unauthenticated, "INVALID_OR_EXPIRED", "refresh credential invalid or expired")
	ErrNotFound         = errs.New(errs.NotFound, "NOT_FOUND", "no active refresh credential")
	ErrMismatch         = errs.New(errs.Mismatch, "MISMATCH", "refresh credential was superseded")
)

// Identity es lo mínimo para emitir un par.
type Identity struct {
	ID   string
	Role string
}

// Pair es el resultado de issue/rotate.
type Pair struct {
	Access        string
	Refresh       string
	AccessClaims  jwt.Claims
	RefreshClaims jwt.Claims
}

// Outstanding es una credencial de acceso emitida y aún no expirada.
type Outstanding struct {
	JTI       string
	ExpiresAt time.Time
}

// Manager es el contrato consumido por los flows.
type Manager interface {
	IssuePair(ctx context.Context, id Identity) (Pair, error)
	Rotate(ctx context.Context, presented string) (Pair, error)
	Invalidate(ctx context.Context, identityID string) error
	OutstandingAccess(ctx context.Context, identityID string) ([]Outstanding, error)
}

// Deps del manager.
type Deps struct {
	Store cache.Client
	Codec *jwt.Codec
}

type manager struct {
	store cache.Client
	codec *jwt.Codec
}

// New crea el manager.
func New(d Deps) Manager {
	return &manager{store: d.Store, codec: d.Codec}
}

func recordKey(id string) string { return cache.Key("refresh", id) }
func indexKey(id string) string  { return cache.Key("access", "idx", id) }
func usedKey(jti string) string  { return cache.Key("refresh", "used", jti) }

func (m *manager) IssuePair(ctx context.Context, id Identity) (Pair, error) {
	log := logger.From(ctx).With(logger.Layer("refresh"), logger.Op("IssuePair"), logger.UserID(id.ID))
	if id.ID == "" {
		return Pair{}, errs.ErrInvalidInput.WithCause(errors.New("refresh: empty identity"))
	}

	access, ac, err := m.codec.Issue(jwt.Claims{Subject: id.ID, Role: id.Role}, jwt.KindAccess)
	if err != nil {
		return Pair{}, err
	}
	refresh, rc, err := m.codec.Issue(jwt.Claims{Subject: id.ID, Role: id.Role}, jwt.KindRefresh)
	if err != nil {
		return Pair{}, err
	}

	// SETEX sobreescribe: el refresh anterior queda inválido en este mismo comando.
	if err := m.store.SetEx(ctx, recordKey(id.ID), refresh, m.codec.TTL(jwt.KindRefresh)); err != nil {
		log.Error("refresh record write failed", logger.Err(err))
		return Pair{}, errs.Store("refresh.issue", err)
	}
	if err := m.track(ctx, id.ID, ac); err != nil {
		// el par ya es válido; sin índice sólo se pierde la revocación masiva
		log.Warn("access index write failed", logger.JTI(ac.JTI), logger.Err(err))
	}

	log.Debug("pair issued", logger.JTI(ac.JTI))
	return Pair{Access: access, Refresh: refresh, AccessClaims: ac, RefreshClaims: rc}, nil
}

// track registra el jti de acceso en el AccessIndex y poda los expirados.
func (m *manager) track(ctx context.Context, identityID string, ac jwt.Claims) error {
	k := indexKey(identityID)
	exp := ac.ExpiresAt.Unix()
	member := ac.JTI + "|" + strconv.FormatInt(exp, 10)
	if err := m.store.ZAdd(ctx, k, cache.Z{Score: float64(exp), Member: member}); err != nil {
		return err
	}
	now := m.codec.Now().Unix()
	if _, err := m.store.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(now, 10)); err != nil {
		return err
	}
	_, err := m.store.Expire(ctx, k, m.codec.TTL(jwt.KindAccess))
	return err
}

func (m *manager) Rotate(ctx context.Context, presented string) (Pair, error) {
	log := logger.From(ctx).With(logger.Layer("refresh"), logger.Op("Rotate"))

	// 1) firma/expiración
	claims, err := m.codec.VerifyKind(presented, jwt.KindRefresh)
	if err != nil {
		metrics.RefreshRotations.WithLabelValues("invalid").Inc()
		return Pair{}, ErrInvalidOrExpired.WithCause(err)
	}
	log = log.With(logger.UserID(claims.Subject))

	// 2) record vigente
	stored, err := m.store.Get(ctx, recordKey(claims.Subject))
	if cache.IsNotFound(err) {
		metrics.RefreshRotations.WithLabelValues("not_found").Inc()
		return Pair{}, ErrNotFound
	}
	if err != nil {
		log.Error("refresh record read failed", logger.Err(err))
		return Pair{}, errs.Store("refresh.rotate", err)
	}

	// 3) igualdad exacta: ambos son tokens firmados de alta entropía
	if stored != presented {
		metrics.RefreshRotations.WithLabelValues("mismatch").Inc()
		log.Warn("superseded refresh credential presented", logger.JTI(claims.JTI))
		return Pair{}, ErrMismatch
	}

	// 4) GET+compare no es atómico: dos rotaciones con el mismo refresh pueden
	// pasar el paso 3. Gana sólo quien marca el jti primero (INCR).
	n, err := m.store.Incr(ctx, usedKey(claims.JTI))
	if err != nil {
		log.Error("refresh use marker failed", logger.Err(err))
		return Pair{}, errs.Store("refresh.rotate", err)
	}
	if n != 1 {
		metrics.RefreshRotations.WithLabelValues("mismatch").Inc()
		log.Warn("refresh credential rotated concurrently", logger.JTI(claims.JTI))
		return Pair{}, ErrMismatch
	}
	ttl := claims.ExpiresAt.Sub(m.codec.Now())
	if ttl <= 0 {
		ttl = time.Second
	}
	if _, err := m.store.Expire(ctx, usedKey(claims.JTI), ttl); err != nil {
		log.Warn("refresh use marker expiry failed", logger.Err(err))
	}

	// 5) par nuevo, overwrite del record
	pair, err := m.IssuePair(ctx, Identity{ID: claims.Subject, Role: claims.Role})
	if err != nil {
		return Pair{}, err
	}
	metrics.RefreshRotations.WithLabelValues("ok").Inc()
	return pair, nil
}

func (m *manager) Invalidate(ctx context.Context, identityID string) error {
	if _, err := m.store.Del(ctx, recordKey(identityID)); err != nil {
		return errs.Store("refresh.invalidate", err)
	}
	return nil
}

func (m *manager) OutstandingAccess(ctx context.Context, identityID string) ([]Outstanding, error) {
	zs, err := m.store.ZRangeWithScores(ctx, indexKey(identityID), 0, -1)
	if err != nil {
		return nil, errs.Store("refresh.outstanding", err)
	}
	now := m.codec.Now()
	out := make([]Outstanding, 0, len(zs))
	for _, z := range zs {
		jti, _, ok := strings.Cut(z.Member, "|")
		if !ok || jti == "" {
			continue
		}
		exp := time.Unix(int64(z.Score), 0)
		if !exp.After(now) {
			continue
		}
		out = append(out, Outstanding{JTI: jti, ExpiresAt: exp})
	}
	return out, nil
}

// String para logs.
func (o Outstanding) String() string {
	return fmt.Sprintf("%s(exp=%s)", o.JTI, o.ExpiresAt.UTC().Format(time.RFC3339))
}
