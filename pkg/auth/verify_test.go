package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/august4056/parallel/pkg/models"
)

func mintHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestVerifyHS256(t *testing.T) {
	v := NewVerifier(Config{Mode: ModeHS256, Secret: "topsecret"})
	raw := mintHS256(t, "topsecret", jwt.MapClaims{
		"sub":   "user-1",
		"email": "a@b.edu",
		"app_metadata": map[string]interface{}{
			"role": "INSTRUCTOR",
		},
	})
	p, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Subject != "user-1" || p.Role != models.RoleInstructor || p.Email != "a@b.edu" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestVerifyHS256WrongSecret(t *testing.T) {
	v := NewVerifier(Config{Mode: ModeHS256, Secret: "topsecret"})
	raw := mintHS256(t, "other", jwt.MapClaims{"sub": "user-1"})
	if _, err := v.Verify(context.Background(), raw); err == nil {
		t.Fatal("expected verification failure for wrong secret")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier(Config{Mode: ModeHS256, Secret: "topsecret"})
	raw := mintHS256(t, "topsecret", jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	if _, err := v.Verify(context.Background(), raw); err == nil {
		t.Fatal("expected verification failure for expired token")
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	v := NewVerifier(Config{Mode: ModeHS256, Secret: "topsecret"})
	raw := mintHS256(t, "topsecret", jwt.MapClaims{"email": "a@b.edu"})
	if _, err := v.Verify(context.Background(), raw); err == nil {
		t.Fatal("expected verification failure for token without subject")
	}
}

func TestVerifyMissingSigningConfig(t *testing.T) {
	cases := []Config{
		{Mode: ModeHS256},
		{Mode: ModeRS256},
		{Mode: "none"},
	}
	for _, cfg := range cases {
		v := NewVerifier(cfg)
		_, err := v.Verify(context.Background(), "whatever")
		if !errors.Is(err, ErrMissingSigningConfig) {
			t.Fatalf("mode %q: expected ErrMissingSigningConfig, got %v", cfg.Mode, err)
		}
	}
}

func TestResolveRolePriority(t *testing.T) {
	cases := []struct {
		name   string
		claims jwt.MapClaims
		want   models.Role
	}{
		{
			"app metadata wins",
			jwt.MapClaims{
				"app_metadata":  map[string]interface{}{"role": "INSTRUCTOR"},
				"user_metadata": map[string]interface{}{"role": "STUDENT"},
				"role":          "STUDENT",
			},
			models.RoleInstructor,
		},
		{
			"user metadata next",
			jwt.MapClaims{
				"user_metadata": map[string]interface{}{"role": "INSTRUCTOR"},
				"role":          "STUDENT",
			},
			models.RoleInstructor,
		},
		{
			"top level claim last",
			jwt.MapClaims{"role": "INSTRUCTOR"},
			models.RoleInstructor,
		},
		{
			"unrecognized value falls to student",
			jwt.MapClaims{
				"app_metadata": map[string]interface{}{"role": "admin"},
			},
			models.RoleStudent,
		},
		{
			"absent role defaults to student",
			jwt.MapClaims{},
			models.RoleStudent,
		},
	}
	for _, c := range cases {
		if got := resolveRole(c.claims); got != c.want {
			t.Fatalf("%s: expected %q, got %q", c.name, c.want, got)
		}
	}
}

func jwksServer(t *testing.T, pub *rsa.PublicKey, kid string, fetches *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}
		*fetches++
		eb := make([]byte, 0, 3)
		for e := pub.E; e > 0; e >>= 8 {
			eb = append([]byte{byte(e)}, eb...)
		}
		doc := map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": kid,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(eb),
			}},
		}
		_ = json.NewEncoder(w).Encode(doc)
	}))
}

func TestVerifyRS256AndKeySetCaching(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fetches := 0
	srv := jwksServer(t, &key.PublicKey, "k1", &fetches)
	defer srv.Close()

	v := NewVerifier(Config{Mode: ModeRS256, Issuer: srv.URL, APIKey: "anon-key"})

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":  "user-7",
		"iss":  srv.URL,
		"exp":  time.Now().Add(time.Hour).Unix(),
		"role": "INSTRUCTOR",
	})
	tok.Header["kid"] = "k1"
	raw, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	for i := 0; i < 3; i++ {
		p, err := v.Verify(context.Background(), raw)
		if err != nil {
			t.Fatalf("verify attempt %d: %v", i, err)
		}
		if p.Subject != "user-7" || p.Role != models.RoleInstructor {
			t.Fatalf("unexpected principal: %+v", p)
		}
	}
	if fetches != 1 {
		t.Fatalf("expected a single key set fetch, got %d", fetches)
	}
}

func TestVerifyRS256KeySetExpiry(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fetches := 0
	srv := jwksServer(t, &key.PublicKey, "k1", &fetches)
	defer srv.Close()

	v := NewVerifier(Config{Mode: ModeRS256, Issuer: srv.URL})
	current := time.Now()
	v.jwks.now = func() time.Time { return current }

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "user-7",
		"iss": srv.URL,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = "k1"
	raw, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := v.Verify(context.Background(), raw); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	current = current.Add(jwksTTL + time.Second)
	if _, err := v.Verify(context.Background(), raw); err != nil {
		t.Fatalf("verify after expiry: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("expected refetch after ttl, got %d fetches", fetches)
	}
}

func TestVerifyRS256WrongSigner(t *testing.T) {
	served, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	rogue, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fetches := 0
	srv := jwksServer(t, &served.PublicKey, "k1", &fetches)
	defer srv.Close()

	v := NewVerifier(Config{Mode: ModeRS256, Issuer: srv.URL})
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "user-7",
		"iss": srv.URL,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = "k1"
	raw, err := tok.SignedString(rogue)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := v.Verify(context.Background(), raw); err == nil {
		t.Fatal("expected verification failure for rogue signer")
	}
}

func TestVerifyRS256RejectsHS256Token(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fetches := 0
	srv := jwksServer(t, &key.PublicKey, "k1", &fetches)
	defer srv.Close()

	v := NewVerifier(Config{Mode: ModeRS256, Issuer: srv.URL})
	raw := mintHS256(t, "sneaky", jwt.MapClaims{"sub": "user-7", "iss": srv.URL})
	if _, err := v.Verify(context.Background(), raw); err == nil {
		t.Fatal("expected rejection of HS256 token in RS256 mode")
	}
}
