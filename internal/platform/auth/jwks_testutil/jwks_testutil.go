package jwks_testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carhop-rentals/booking-verify-api/internal/platform/auth/jwtverifier"
)

type Keypair struct {
	Kid     string
	Private *rsa.PrivateKey
}

func GenerateRSAKeypair(kid string) (Keypair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Kid: kid, Private: priv}, nil
}

// MarshalJWKS renders the public halves of keys as a JWKS document.
func MarshalJWKS(keys ...Keypair) ([]byte, error) {
	set := jwtverifier.JWKS{Keys: make([]jwtverifier.JWK, 0, len(keys))}
	for _, kp := range keys {
		set.Keys = append(set.Keys, jwtverifier.PublicJWK(kp.Kid, &kp.Private.PublicKey))
	}
	return json.Marshal(set)
}

// NewRotatingJWKSServer returns a JWKS server whose key set can be swapped at runtime.
//
// Use SetKeys to rotate keys.
func NewRotatingJWKSServer() (*httptest.Server, func(keys []Keypair)) {
	var jwksJSON atomic.Value // []byte
	jwksJSON.Store([]byte(`{"keys":[]}`))

	setKeys := func(keys []Keypair) {
		b, _ := MarshalJWKS(keys...)
		jwksJSON.Store(b)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwksJSON.Load().([]byte))
	}))

	return srv, setKeys
}

// Profile holds the identity claims placed in a minted token.
type Profile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// MintRS256JWT creates a signed JWT using RS256 with the given keypair.
// nbfDelta is optional.
func MintRS256JWT(kp Keypair, iss string, aud []string, p Profile, now time.Time, expDelta time.Duration, nbfDelta *time.Duration) (string, error) {
	claims := jwtverifier.Claims{
		Email:   p.Email,
		Name:    p.Name,
		Picture: p.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    iss,
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings(aud),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expDelta)),
		},
	}
	if nbfDelta != nil {
		claims.NotBefore = jwt.NewNumericDate(now.Add(*nbfDelta))
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kp.Kid
	return tok.SignedString(kp.Private)
}
