package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/august4056/parallel/pkg/models"
)

const (
	ModeHS256 = "hs256"
	ModeRS256 = "rs256"
)

// ErrMissingSigningConfig means the gateway is misconfigured, not that the
// caller presented a bad token.
var ErrMissingSigningConfig = errors.New("signing configuration missing")

// Config selects the verification mode and its material.
type Config struct {
	Mode     string
	Secret   string
	Issuer   string
	APIKey   string
	Audience string
	Timeout  time.Duration
}

type Option func(*Verifier)

// WithHTTPClient overrides the client used for JWKS fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(v *Verifier) {
		v.jwks.client = client
	}
}

// Verifier checks bearer tokens in one of two modes: HS256 with a shared
// secret, or RS256 against the issuer's remote JWKS.
type Verifier struct {
	cfg  Config
	jwks *jwksCache
}

func NewVerifier(cfg Config, options ...Option) *Verifier {
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.Issuer = strings.TrimRight(strings.TrimSpace(cfg.Issuer), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	v := &Verifier{cfg: cfg, jwks: newJWKSCache(cfg.APIKey, cfg.Timeout)}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Verify parses and validates raw and resolves the caller's principal.
func (v *Verifier) Verify(ctx context.Context, raw string) (Principal, error) {
	keyfunc, methods, err := v.keyfunc(ctx)
	if err != nil {
		return Principal{}, err
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods(methods)}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, keyfunc, opts...)
	if err != nil {
		return Principal{}, err
	}
	if !token.Valid {
		return Principal{}, errors.New("token rejected")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Principal{}, errors.New("token has no subject")
	}
	email, _ := claims["email"].(string)
	return Principal{Subject: sub, Role: resolveRole(claims), Email: email}, nil
}

func (v *Verifier) keyfunc(ctx context.Context) (jwt.Keyfunc, []string, error) {
	switch v.cfg.Mode {
	case ModeHS256:
		if v.cfg.Secret == "" {
			return nil, nil, ErrMissingSigningConfig
		}
		secret := []byte(v.cfg.Secret)
		fn := func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return secret, nil
		}
		return fn, []string{"HS256"}, nil
	case ModeRS256:
		if v.cfg.Issuer == "" {
			return nil, nil, ErrMissingSigningConfig
		}
		issuer := v.cfg.Issuer
		cache := v.jwks
		fn := func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			kid, _ := t.Header["kid"].(string)
			return cache.key(ctx, issuer, kid)
		}
		return fn, []string{"RS256"}, nil
	default:
		return nil, nil, ErrMissingSigningConfig
	}
}

// resolveRole walks the claim locations in priority order: app_metadata,
// user_metadata, then the top-level role claim. The first present value wins
// and is normalized; absence means STUDENT.
func resolveRole(claims jwt.MapClaims) models.Role {
	if raw := metadataRole(claims, "app_metadata"); raw != "" {
		return models.ParseRole(raw)
	}
	if raw := metadataRole(claims, "user_metadata"); raw != "" {
		return models.ParseRole(raw)
	}
	if raw, _ := claims["role"].(string); raw != "" {
		return models.ParseRole(raw)
	}
	return models.RoleStudent
}

func metadataRole(claims jwt.MapClaims, key string) string {
	meta, ok := claims[key].(map[string]interface{})
	if !ok {
		return ""
	}
	raw, _ := meta["role"].(string)
	return raw
}
