package middlewares

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/J4CIVY/bskmt-security/internal/http/errors"
	"github.com/J4CIVY/bskmt-security/internal/observability/logger"
	"github.com/J4CIVY/bskmt-security/internal/rate"
)

// RateKeyFunc deriva la clave de rate limit a partir del request.
type RateKeyFunc func(r *http.Request) string

// IPRateKey limita por IP del cliente (considerando proxies).
func IPRateKey(prefix string) RateKeyFunc {
	return func(r *http.Request) string {
		return prefix + ":" + clientIP(r)
	}
}

// UserRateKey limita por usuario autenticado, con fallback a IP.
func UserRateKey(prefix string) RateKeyFunc {
	return func(r *http.Request) string {
		if uid := GetUserID(r.Context()); uid != "" {
			return prefix + ":" + uid
		}
		return prefix + ":ip:" + clientIP(r)
	}
}

// clientIP extrae la IP del cliente, considerando proxies.
func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithRateLimit aplica el limiter con la clave derivada por keyFunc.
// Si el limiter falla (p.ej. redis caído) el request pasa: preferimos
// disponibilidad a bloquear la cuenta entera.
func WithRateLimit(limiter rate.Limiter, keyFunc RateKeyFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			res, err := limiter.Allow(r.Context(), keyFunc(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(res.RetryAfter.Seconds())+1))
				errors.WriteError(w, errors.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
