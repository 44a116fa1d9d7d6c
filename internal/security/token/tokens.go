package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	if nBytes < 16 {
		return "", fmt.Errorf("tokens: %d bytes is below the 128-bit minimum", nBytes)
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GeneratePrefixedToken genera "<prefix>_<opaco>" (ej: "vst_...").
// El prefijo hace al token distinguible a simple vista en logs y soporte.
func GeneratePrefixedToken(prefix string, nBytes int) (string, error) {
	raw, err := GenerateOpaqueToken(nBytes)
	if err != nil {
		return "", err
	}
	return prefix + "_" + raw, nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding (para usar como key del store).
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ConstantTimeEqual compara a y b en tiempo fijo respecto del contenido.
// Ambos buffers se recorren hasta la longitud del mayor (el menor se completa
// con ceros) y la diferencia de longitud se acumula en el resultado, así no hay
// early return por longitud ni por el primer byte distinto.
func ConstantTimeEqual(a, b string) bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	var diff byte
	if len(a) != len(b) {
		diff = 1
	}
	for i := 0; i < n; i++ {
		var x, y byte
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		diff |= x ^ y
	}
	return diff == 0
}
