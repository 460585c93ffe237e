package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/platform/auth/jwks_testutil"
)

// Tiny dev-only JWT issuer + JWKS server.
//
// This is NOT a full OIDC provider. It exists to support local development against
// real RS256 JWT verification (iss/aud/exp + JWKS) with the email and name claims
// the booking API reads.

func main() {
	port := getenv("PORT", "5556")
	issuer := getenv("ISSUER", "http://devjwt:5556")
	audience := getenv("AUDIENCE", "booking-verify-api")
	kid := getenv("KID", "dev-kid-1")
	ttl := getenvDuration("TTL", 30*time.Minute)

	kp, err := jwks_testutil.GenerateRSAKeypair(kid)
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}
	jwksJSON, err := jwks_testutil.MarshalJWKS(kp)
	if err != nil {
		log.Fatalf("marshal jwks: %v", err)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Common JWKS path used by many providers.
	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jwksJSON)
	})

	// Mint a JWT:
	//   GET /token?email=alice@example.com&name=Alice
	// sub defaults to "dev|<email>".
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		email := domain.NormalizeEmail(q.Get("email"))
		if email == "" {
			http.Error(w, "missing email", http.StatusBadRequest)
			return
		}
		sub := strings.TrimSpace(q.Get("sub"))
		if sub == "" {
			sub = "dev|" + email
		}
		p := jwks_testutil.Profile{
			Subject: sub,
			Email:   email,
			Name:    q.Get("name"),
			Picture: q.Get("picture"),
		}

		now := time.Now().UTC()
		// Small nbf skew tolerance for local use.
		nbf := -5 * time.Second
		token, err := jwks_testutil.MintRS256JWT(kp, issuer, []string{audience}, p, now, ttl, &nbf)
		if err != nil {
			http.Error(w, "failed to mint token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": token,
			"sub":   sub,
			"email": email,
			"iss":   issuer,
			"aud":   audience,
			"exp":   now.Add(ttl).Unix(),
		})
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("devjwt listening on :%s (iss=%s aud=%s kid=%s ttl=%s)", port, issuer, audience, kid, ttl)
	log.Fatal(srv.ListenAndServe())
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
