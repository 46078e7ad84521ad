// Package router define las rutas HTTP del servicio de seguridad de cuentas.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	healthctrl "github.com/J4CIVY/bskmt-security/internal/http/controllers/health"
	secctrl "github.com/J4CIVY/bskmt-security/internal/http/controllers/security"
	mw "github.com/J4CIVY/bskmt-security/internal/http/middlewares"
	"github.com/J4CIVY/bskmt-security/internal/rate"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Security *secctrl.Controllers
	Health   *healthctrl.HealthController

	JWTSecret string
	JWTIssuer string

	// VerifyLimiter acota los intentos de verificación TOTP y el canje de
	// códigos de respaldo (por usuario). nil = sin límite.
	VerifyLimiter rate.Limiter

	// TrustLimiter acota el alta de dispositivos (por usuario). nil = sin límite.
	TrustLimiter rate.Limiter
}

// New construye el router completo con su cadena de middlewares.
//
// Orden de la cadena (de afuera hacia adentro): Recover -> RequestID ->
// Logging -> SecurityHeaders; Auth + NoStore solo en /v1/security.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRecover())
	r.Use(mw.WithRequestID())
	r.Use(mw.WithLogging())
	r.Use(mw.WithSecurityHeaders())

	// Públicas: operación, no producto.
	r.Get("/healthz", deps.Health.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Todo /v1/security exige bearer JWT y prohíbe cachear respuestas.
	r.Route("/v1/security", func(r chi.Router) {
		r.Use(mw.RequireAuth(deps.JWTSecret, deps.JWTIssuer))
		r.Use(mw.WithNoStore())

		sec := deps.Security

		r.Route("/2fa", func(r chi.Router) {
			r.Post("/enroll", sec.TwoFactor.Enroll)
			r.Post("/enroll/ack", sec.TwoFactor.AckScan)
			r.Post("/cancel", sec.TwoFactor.Cancel)
			r.Post("/disable", sec.TwoFactor.Disable)
			r.Post("/disable/confirm", sec.TwoFactor.ConfirmDisable)
			r.Get("/backup-codes/export", sec.TwoFactor.ExportBackupCodes)

			// Verificación y canje comparten el límite anti fuerza bruta.
			verify := mw.WithRateLimit(deps.VerifyLimiter, mw.UserRateKey("2fa:verify"))
			r.With(verify).Post("/verify", sec.TwoFactor.Verify)
			r.With(verify).Post("/backup-codes/redeem", sec.TwoFactor.RedeemBackupCode)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", sec.Devices.List)
			r.Delete("/", sec.Devices.RevokeAll)
			r.Delete("/{deviceID}", sec.Devices.Revoke)

			trust := mw.WithRateLimit(deps.TrustLimiter, mw.UserRateKey("devices:trust"))
			r.With(trust).Post("/trust", sec.Devices.Trust)
		})

		r.Get("/alerts", sec.Alerts.Get)
		r.Put("/alerts", sec.Alerts.Set)

		r.Post("/password", sec.Password.Change)
	})

	return r
}
