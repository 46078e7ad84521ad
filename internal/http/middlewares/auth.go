package middlewares

import (
	"net/http"
	"strings"

	"github.com/J4CIVY/bskmt-security/internal/http/errors"
	"github.com/J4CIVY/bskmt-security/internal/observability/logger"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// RequireAuth valida el bearer JWT emitido por la app de membresías (HS256,
// secreto compartido) y deja claims + user id en el contexto.
//
// Claims esperadas: sub (user id UUID), email, exp/nbf estándar.
func RequireAuth(secret string, issuer string) Middleware {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("missing bearer token"))
				return
			}

			opts := []jwtv5.ParserOption{jwtv5.WithValidMethods([]string{"HS256"})}
			if issuer != "" {
				opts = append(opts, jwtv5.WithIssuer(issuer))
			}
			tok, err := jwtv5.Parse(raw, func(*jwtv5.Token) (any, error) { return key, nil }, opts...)
			if err != nil || !tok.Valid {
				logger.From(r.Context()).Warn("invalid bearer token", logger.Err(err))
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("invalid token"))
				return
			}

			claims, ok := tok.Claims.(jwtv5.MapClaims)
			if !ok {
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("invalid claims"))
				return
			}

			sub, _ := claims["sub"].(string)
			if sub == "" {
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("missing sub"))
				return
			}

			m := make(map[string]any, len(claims))
			for k, v := range claims {
				m[k] = v
			}

			ctx := WithClaims(r.Context(), m)
			ctx = WithUserID(ctx, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
