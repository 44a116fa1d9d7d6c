package middlewares

import (
	"context"

	"github.com/dropDatabas3/credengine/internal/jwt"
)

type ctxKey string

const (
	ctxClaimsKey    ctxKey = "claims"
	ctxRequestIDKey ctxKey = "request_id"
)

// WithClaims inyecta las claims verificadas en el contexto.
func WithClaims(ctx context.Context, c jwt.Claims) context.Context {
	return context.WithValue(ctx, ctxClaimsKey, c)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetClaims devuelve las claims del access token, si RequireAuth corrió.
func GetClaims(ctx context.Context) (jwt.Claims, bool) {
	c, ok := ctx.Value(ctxClaimsKey).(jwt.Claims)
	return c, ok
}

// GetUserID devuelve el sub de las claims o "".
func GetUserID(ctx context.Context) string {
	c, _ := GetClaims(ctx)
	return c.Subject
}

// GetRequestID devuelve el request ID o "".
func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxRequestIDKey).(string)
	return s
}
