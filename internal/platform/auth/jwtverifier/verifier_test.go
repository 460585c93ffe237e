package jwtverifier_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/platform/auth/jwks_testutil"
	"github.com/carhop-rentals/booking-verify-api/internal/platform/auth/jwtverifier"
	"github.com/carhop-rentals/booking-verify-api/internal/platform/config"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

var alice = jwks_testutil.Profile{
	Subject: "google-oauth2|123",
	Email:   " Alice@Example.com",
	Name:    "  Alice   Rider ",
	Picture: "https://cdn.example.com/a.png",
}

type harness struct {
	srv     *httptest.Server
	setKeys func([]jwks_testutil.Keypair)
	clk     *fakeClock
	cfg     config.JWTConfig
}

func newHarness(t *testing.T, refresh time.Duration) harness {
	t.Helper()
	srv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	t.Cleanup(srv.Close)
	return harness{
		srv:     srv,
		setKeys: setKeys,
		clk:     &fakeClock{now: time.Unix(1700000000, 0)},
		cfg: config.JWTConfig{
			Issuer:                 "test-iss",
			Audience:               "test-aud",
			JWKSURL:                srv.URL,
			ClockSkew:              0,
			JWKSRefreshInterval:    refresh,
			JWKSMinRefreshInterval: 0,
			HTTPTimeout:            2 * time.Second,
		},
	}
}

func (h harness) mint(t *testing.T, kp jwks_testutil.Keypair, p jwks_testutil.Profile, exp time.Duration) string {
	t.Helper()
	tok, err := jwks_testutil.MintRS256JWT(kp, h.cfg.Issuer, []string{h.cfg.Audience}, p, h.clk.Now(), exp, nil)
	require.NoError(t, err)
	return tok
}

func TestVerifier_Verify_ValidToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 10*time.Minute)
	kp, err := jwks_testutil.GenerateRSAKeypair("kid-1")
	require.NoError(t, err)
	h.setKeys([]jwks_testutil.Keypair{kp})

	v := jwtverifier.NewWithOptions(h.cfg, nil, h.clk)
	id, err := v.Verify(context.Background(), h.mint(t, kp, alice, 5*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, domain.SubjectID("google-oauth2|123"), id.Subject)
	assert.Equal(t, "alice@example.com", id.Email)
	assert.Equal(t, "Alice Rider", id.DisplayName)
	require.NotNil(t, id.AvatarURL)
	assert.Equal(t, alice.Picture, *id.AvatarURL)
}

func TestVerifier_Verify_Rejects(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 10*time.Minute)
	kp, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	h.setKeys([]jwks_testutil.Keypair{kp})
	v := jwtverifier.NewWithOptions(h.cfg, nil, h.clk)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forged := jwks_testutil.Keypair{Kid: "kid-1", Private: other}

	noEmail := alice
	noEmail.Email = ""

	wrongIss, err := jwks_testutil.MintRS256JWT(kp, "wrong-iss", []string{h.cfg.Audience}, alice, h.clk.Now(), 5*time.Minute, nil)
	require.NoError(t, err)
	wrongAud, err := jwks_testutil.MintRS256JWT(kp, h.cfg.Issuer, []string{"wrong-aud"}, alice, h.clk.Now(), 5*time.Minute, nil)
	require.NoError(t, err)
	future := time.Minute
	notYet, err := jwks_testutil.MintRS256JWT(kp, h.cfg.Issuer, []string{h.cfg.Audience}, alice, h.clk.Now(), 5*time.Minute, &future)
	require.NoError(t, err)

	cases := map[string]string{
		"expired":       h.mint(t, kp, alice, -time.Minute),
		"bad signature": h.mint(t, forged, alice, 5*time.Minute),
		"missing email": h.mint(t, kp, noEmail, 5*time.Minute),
		"wrong issuer":  wrongIss,
		"wrong aud":     wrongAud,
		"not yet valid": notYet,
		"garbage":       "not-a-jwt",
	}
	for name, tok := range cases {
		_, err := v.Verify(context.Background(), tok)
		assert.ErrorIs(t, err, jwtverifier.ErrUnauthorized, name)
	}
}

func TestVerifier_Verify_JWKSRotation_OldKidRejected_NewKidAccepted(t *testing.T) {
	t.Parallel()
	h := newHarness(t, time.Second)
	k1, _ := jwks_testutil.GenerateRSAKeypair("kid-1")
	k2, _ := jwks_testutil.GenerateRSAKeypair("kid-2")
	h.setKeys([]jwks_testutil.Keypair{k1})
	v := jwtverifier.NewWithOptions(h.cfg, nil, h.clk)

	jwt1 := h.mint(t, k1, alice, 5*time.Minute)
	_, err := v.Verify(context.Background(), jwt1)
	require.NoError(t, err)

	// Rotate: JWKS now only contains kid-2.
	h.setKeys([]jwks_testutil.Keypair{k2})
	h.clk.Advance(2 * time.Second)

	_, err = v.Verify(context.Background(), jwt1)
	assert.Error(t, err, "old kid must be rejected after refresh")

	bob := jwks_testutil.Profile{Subject: "sub-bob", Email: "bob@example.com"}
	id, err := v.Verify(context.Background(), h.mint(t, k2, bob, 5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.SubjectID("sub-bob"), id.Subject)
	assert.Nil(t, id.AvatarURL)
	assert.Equal(t, "bob@example.com", id.NameOrEmail())
}

func TestParseJWKS_NoUsableKeys(t *testing.T) {
	t.Parallel()
	_, err := jwtverifier.ParseJWKS([]byte(`{"keys":[{"kty":"EC","kid":"k"}]}`))
	assert.Error(t, err)
}
