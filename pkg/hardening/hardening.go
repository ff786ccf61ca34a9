// Package hardening validates production configuration at startup so that a
// misdeployed gateway fails fast instead of serving with weak settings.
package hardening

import (
	"fmt"
	"strings"
)

type Options struct {
	Service            string
	Environment        string
	StrictProdSecurity string
	AuthMode           string
	JWTSecret          string
	SupabaseURL        string
	ServiceKey         string
	RedisAddr          string
	RedisRequireTLS    string
	RedisTLSInsecure   string
	CORSAllowedOrigins string
}

func ValidateProduction(o Options) error {
	if !isProductionLikeEnv(o.Environment) {
		return nil
	}
	if !isTrue(o.StrictProdSecurity, true) {
		return nil
	}
	service := strings.TrimSpace(o.Service)
	if service == "" {
		service = "gateway"
	}
	switch strings.ToLower(strings.TrimSpace(o.AuthMode)) {
	case "hs256":
		if strings.TrimSpace(o.JWTSecret) == "" {
			return fmt.Errorf("%s: strict production hardening requires SUPABASE_JWT_SECRET in hs256 mode", service)
		}
	case "rs256":
		if strings.TrimSpace(o.SupabaseURL) == "" {
			return fmt.Errorf("%s: strict production hardening requires SUPABASE_URL in rs256 mode", service)
		}
	default:
		return fmt.Errorf("%s: strict production hardening requires AUTH_MODE of hs256 or rs256", service)
	}
	if strings.TrimSpace(o.SupabaseURL) != "" && !strings.HasPrefix(strings.ToLower(strings.TrimSpace(o.SupabaseURL)), "https://") {
		return fmt.Errorf("%s: strict production hardening requires HTTPS SUPABASE_URL", service)
	}
	if strings.TrimSpace(o.ServiceKey) == "" {
		return fmt.Errorf("%s: strict production hardening requires SUPABASE_SERVICE_KEY", service)
	}
	if strings.TrimSpace(o.RedisAddr) != "" {
		if !isTrue(o.RedisRequireTLS, false) {
			return fmt.Errorf("%s: strict production hardening requires REDIS_REQUIRE_TLS=true", service)
		}
		if isTrue(o.RedisTLSInsecure, false) {
			return fmt.Errorf("%s: strict production hardening forbids REDIS_TLS_INSECURE", service)
		}
	}
	return validateCORSOrigins(o.CORSAllowedOrigins, service)
}

func validateCORSOrigins(raw, service string) error {
	origins := strings.Split(raw, ",")
	validCount := 0
	for _, origin := range origins {
		o := strings.TrimSpace(origin)
		if o == "" {
			continue
		}
		validCount++
		lower := strings.ToLower(o)
		if lower == "*" {
			return fmt.Errorf("%s: strict production hardening forbids CORS wildcard origin", service)
		}
		if strings.HasPrefix(lower, "http://localhost") || strings.HasPrefix(lower, "https://localhost") || strings.HasPrefix(lower, "http://127.0.0.1") || strings.HasPrefix(lower, "https://127.0.0.1") {
			return fmt.Errorf("%s: strict production hardening forbids localhost CORS origin %q", service, o)
		}
		if !strings.HasPrefix(lower, "https://") {
			return fmt.Errorf("%s: strict production hardening requires HTTPS CORS origin, got %q", service, o)
		}
	}
	if validCount == 0 {
		return fmt.Errorf("%s: strict production hardening requires explicit CORS_ALLOWED_ORIGINS", service)
	}
	return nil
}

func isTrue(raw string, def bool) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return def
	}
	return strings.EqualFold(trimmed, "true")
}

func isProductionLikeEnv(raw string) bool {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "prod", "production", "staging", "stage":
		return true
	default:
		return false
	}
}
