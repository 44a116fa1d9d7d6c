// Package cache provee el TTL store compartido por todos los managers del engine.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing, con reloj inyectable)
//   - Redis (distribuido, para producción)
//
// Cada comando es atómico por sí solo; el engine no usa transacciones multi-key.
package cache

import (
	"context"
	"errors"
	"time"
)

// NoExpiry es lo que devuelve TTL para una key existente sin expiración.
const NoExpiry time.Duration = -1

// Z es un miembro de un sorted set.
type Z struct {
	Score  float64
	Member string
}

// Client define el contrato del TTL store.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetEx guarda un valor con TTL obligatorio (> 0).
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// Del elimina keys y devuelve cuántas existían.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Incr incrementa atómicamente un contador (lo crea en 1 si no existe, sin TTL).
	Incr(ctx context.Context, key string) (int64, error)

	// Expire setea el TTL de una key existente. false si la key no existe.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// TTL devuelve el tiempo restante, NoExpiry si no expira, ErrNotFound si no existe.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Sorted sets (sliding windows, índices por identidad).
	ZAdd(ctx context.Context, key string, members ...Z) error
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Z, error)
	// ZRemRangeByScore acepta la sintaxis de Redis: "-inf", "+inf", "(123".
	ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error)
	ZCard(ctx context.Context, key string) (int64, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error

	// Stats retorna estadísticas del store.
	Stats(ctx context.Context) (Stats, error)
}

// Stats contiene estadísticas del store.
type Stats struct {
	Driver     string
	Keys       int64
	UsedMemory string
	Hits       int64
	Misses     int64
}

// Config configuración para crear un cliente.
type Config struct {
	Driver    string // "memory" | "redis"
	Addr      string // host:port
	Password  string
	DB        int
	Prefix    string        // Prefijo para todas las keys
	OpTimeout time.Duration // timeout de lectura/escritura por comando (redis)
}

// Errores del store.
var (
	ErrNotFound  = errors.New("cache: key not found")
	ErrWrongType = errors.New("cache: operation against a key holding the wrong kind of value")
	ErrNotInt    = errors.New("cache: value is not an integer")
)

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// New crea un cliente según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}

// Key arma una key con segmentos separados por ":".
func Key(parts ...string) string {
	n := 0
	for _, p := range parts {
		n += len(p) + 1
	}
	b := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			b = append(b, ':')
		}
		b = append(b, p...)
	}
	return string(b)
}
