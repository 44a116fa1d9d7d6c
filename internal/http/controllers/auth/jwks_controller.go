package auth

import (
	"net/http"

	"github.com/dropDatabas3/credengine/internal/jwt"
)

// JWKSController publica las claves públicas de verificación.
type JWKSController struct {
	codec *jwt.Codec
}

func NewJWKSController(codec *jwt.Codec) *JWKSController {
	return &JWKSController{codec: codec}
}

// GetJWKS maneja GET /.well-known/jwks.json
func (c *JWKSController) GetJWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(c.codec.JWKSJSON())
}
