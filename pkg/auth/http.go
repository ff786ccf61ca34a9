package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/august4056/parallel/pkg/httpx"
	"github.com/august4056/parallel/pkg/models"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the verified caller attached to the request context.
type Principal struct {
	Subject string
	Role    models.Role
	Email   string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// Required rejects requests without a valid bearer token.
func Required(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				httpx.WriteErr(w, httpx.AuthenticationErr("Missing bearer token"))
				return
			}
			p, err := v.Verify(r.Context(), raw)
			if err != nil {
				if errors.Is(err, ErrMissingSigningConfig) {
					httpx.WriteErr(w, err)
					return
				}
				httpx.WriteErr(w, httpx.AuthenticationErr("Invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// Optional attaches a principal when a valid token is presented and lets the
// request through anonymously otherwise.
func Optional(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw, ok := bearerToken(r); ok {
				if p, err := v.Verify(r.Context(), raw); err == nil {
					r = r.WithContext(WithPrincipal(r.Context(), p))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
