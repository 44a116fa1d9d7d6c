// Package jwt firma y verifica las credenciales bearer del engine (EdDSA).
package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/credengine/internal/domain/errs"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distingue access de refresh dentro del claim "kind".
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims es la credencial decodificada.
type Claims struct {
	Subject   string
	Role      string
	JTI       string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Remaining devuelve la vida útil restante (0 si ya expiró).
func (c Claims) Remaining(now time.Time) time.Duration {
	d := c.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

var (
	ErrExpired      = errs.New(errs.Expired, "EXPIRED", "credential expired")
	ErrMalformed    = errs.New(errs.Unauthenticated, "MALFORMED", "malformed credential")
	ErrBadSignature = errs.New(errs.Unauthenticated, "BAD_SIGNATURE", "invalid credential signature")
	ErrBadClaims    = errs.New(errs.Unauthenticated, "INVALID_CLAIMS", "invalid credential claims")
	ErrWrongKind    = errs.New(errs.Unauthenticated, "WRONG_KIND", "unexpected credential kind")
)

// Config de un Codec. Keys[0] firma; el resto sólo verifica (rotación).
type Config struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Keys       []*KeySet
	Now        func() time.Time
}

// Codec emite y verifica credenciales.
type Codec struct {
	iss        string
	accessTTL  time.Duration
	refreshTTL time.Duration
	active     *KeySet
	byKID      map[string]ed25519.PublicKey
	keys       []*KeySet
	now        func() time.Time
}

// NewCodec valida la config y arma el codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Keys) == 0 || cfg.Keys[0] == nil {
		return nil, errors.New("jwt: at least one signing key is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("jwt: lifetimes must be positive (access=%s refresh=%s)", cfg.AccessTTL, cfg.RefreshTTL)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	c := &Codec{
		iss:        cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		active:     cfg.Keys[0],
		byKID:      make(map[string]ed25519.PublicKey, len(cfg.Keys)),
		now:        now,
	}
	for _, k := range cfg.Keys {
		if k == nil {
			continue
		}
		c.byKID[k.KID] = k.Pub
		c.keys = append(c.keys, k)
	}
	return c, nil
}

// TTL devuelve la vida útil configurada para el kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// MaxTTL es la vida más larga que puede tener una credencial emitida.
func (c *Codec) MaxTTL() time.Duration {
	if c.refreshTTL > c.accessTTL {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Now expone el reloj del codec (los managers lo comparten en tests).
func (c *Codec) Now() time.Time { return c.now() }

// ActiveKID es el kid con el que se firma.
func (c *Codec) ActiveKID() string { return c.active.KID }

// JWKSJSON devuelve las claves públicas vigentes.
func (c *Codec) JWKSJSON() []byte { return buildJWKS(c.keys...) }

// Issue firma una credencial nueva. Subject y Role salen de in; jti, iat y exp
// se generan siempre.
func (c *Codec) Issue(in Claims, kind Kind) (string, Claims, error) {
	if in.Subject == "" {
		return "", Claims{}, errs.ErrInvalidInput.WithCause(errors.New("jwt: empty subject"))
	}
	if kind != KindAccess && kind != KindRefresh {
		return "", Claims{}, errs.ErrInvalidInput.WithCause(fmt.Errorf("jwt: unknown kind %q", kind))
	}
	now := c.now().Truncate(time.Second)
	out := Claims{
		Subject:   in.Subject,
		Role:      in.Role,
		JTI:       uuid.NewString(),
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(c.TTL(kind)),
	}
	claims := jwtv5.MapClaims{
		"iss":  c.iss,
		"sub":  out.Subject,
		"role": out.Role,
		"jti":  out.JTI,
		"kind": string(kind),
		"iat":  out.IssuedAt.Unix(),
		"nbf":  out.IssuedAt.Unix(),
		"exp":  out.ExpiresAt.Unix(),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = c.active.KID
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(c.active.Priv)
	if err != nil {
		return "", Claims{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, out, nil
}

func (c *Codec) keyfunc(t *jwtv5.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	pub, ok := c.byKID[kid]
	if !ok {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return pub, nil
}

// Verify valida firma, issuer y expiración.
func (c *Codec) Verify(signed string) (Claims, error) {
	if signed == "" {
		return Claims{}, ErrMalformed
	}
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithTimeFunc(c.now),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithIssuedAt(),
	}
	if c.iss != "" {
		opts = append(opts, jwtv5.WithIssuer(c.iss))
	}
	mc := jwtv5.MapClaims{}
	_, err := jwtv5.NewParser(opts...).ParseWithClaims(signed, mc, c.keyfunc)
	if err != nil {
		return Claims{}, mapParseError(err)
	}
	return claimsFromMap(mc)
}

// VerifyKind es Verify más el chequeo del kind esperado.
func (c *Codec) VerifyKind(signed string, kind Kind) (Claims, error) {
	cl, err := c.Verify(signed)
	if err != nil {
		return Claims{}, err
	}
	if cl.Kind != kind {
		return Claims{}, ErrWrongKind
	}
	return cl, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return ErrExpired.WithCause(err)
	case errors.Is(err, jwtv5.ErrTokenMalformed):
		return ErrMalformed.WithCause(err)
	case errors.Is(err, jwtv5.ErrTokenSignatureInvalid),
		errors.Is(err, jwtv5.ErrTokenUnverifiable):
		return ErrBadSignature.WithCause(err)
	default:
		return ErrBadClaims.WithCause(err)
	}
}

func claimsFromMap(mc jwtv5.MapClaims) (Claims, error) {
	sub, _ := mc["sub"].(string)
	jti, _ := mc["jti"].(string)
	role, _ := mc["role"].(string)
	kind, _ := mc["kind"].(string)
	if sub == "" || jti == "" {
		return Claims{}, ErrBadClaims.WithCause(errors.New("missing sub or jti"))
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, ErrBadClaims.WithCause(errors.New("missing exp"))
	}
	out := Claims{
		Subject:   sub,
		Role:      role,
		JTI:       jti,
		Kind:      Kind(kind),
		ExpiresAt: exp.Time,
	}
	if iat, _ := mc.GetIssuedAt(); iat != nil {
		out.IssuedAt = iat.Time
	}
	return out, nil
}
