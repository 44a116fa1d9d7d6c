package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// KeySet es un par Ed25519 con su KID.
type KeySet struct {
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
	KID  string
	Alg  string // "EdDSA"
}

// NewDevEd25519 genera una clave Ed25519 en memoria con un KID dado.
// Sólo para dev/tests: las credenciales emitidas mueren con el proceso.
func NewDevEd25519(kid string) (*KeySet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	if kid == "" {
		kid = deriveKID(pub)
	}
	return &KeySet{Priv: priv, Pub: pub, KID: kid, Alg: "EdDSA"}, nil
}

// KeySetFromSeed reconstruye la clave a partir de un seed base64 (std o url) de 32 bytes.
// Si kid es vacío se deriva de la clave pública, así todos los nodos coinciden.
func KeySetFromSeed(seedB64, kid string) (*KeySet, error) {
	seedB64 = strings.TrimSpace(seedB64)
	seed, err := base64.StdEncoding.DecodeString(seedB64)
	if err != nil {
		seed, err = base64.RawURLEncoding.DecodeString(seedB64)
	}
	if err != nil {
		return nil, fmt.Errorf("jwt: signing seed is not valid base64: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jwt: signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	if kid == "" {
		kid = deriveKID(pub)
	}
	return &KeySet{Priv: priv, Pub: pub, KID: kid, Alg: "EdDSA"}, nil
}

// NewSeed genera un seed aleatorio en base64 (para `credengine keygen`).
func NewSeed() (string, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(seed), nil
}

func deriveKID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return base64.RawURLEncoding.EncodeToString(sum[:9])
}

// ----- JWKS (serialización) -----

type jwk struct {
	Kty string `json:"kty"` // "OKP"
	Crv string `json:"crv"` // "Ed25519"
	Kid string `json:"kid"`
	Alg string `json:"alg"` // "EdDSA"
	Use string `json:"use"` // "sig"
	X   string `json:"x"`   // base64url(pub)
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// buildJWKS devuelve el JWKS (sólo públicas) en JSON.
func buildJWKS(sets ...*KeySet) []byte {
	j := jwks{Keys: make([]jwk, 0, len(sets))}
	for _, k := range sets {
		if k == nil {
			continue
		}
		j.Keys = append(j.Keys, jwk{
			Kty: "OKP",
			Crv: "Ed25519",
			Kid: k.KID,
			Alg: k.Alg,
			Use: "sig",
			X:   base64.RawURLEncoding.EncodeToString(k.Pub),
		})
	}
	b, _ := json.Marshal(j)
	return b
}
