package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus del subsistema de seguridad. Viven en un paquete propio
// para evitar ciclos de import entre services y HTTP.

var (
	TwoFactorEnrollments = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "security_2fa_enrollments_total",
		Help: "Enrolamientos 2FA completados (verificación exitosa)",
	})

	TwoFactorVerifyFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "security_2fa_verify_failures_total",
		Help: "Verificaciones TOTP fallidas durante enrolamiento",
	})

	TwoFactorDisables = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "security_2fa_disables_total",
		Help: "Deshabilitaciones de 2FA confirmadas",
	})

	BackupCodesRedeemed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "security_backup_codes_redeemed_total",
		Help: "Códigos de respaldo consumidos",
	})

	DevicesTrusted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "security_devices_trusted_total",
		Help: "Dispositivos confiables registrados (entradas nuevas, no refresh)",
	})

	DevicesRevoked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "security_devices_revoked_total",
		Help: "Dispositivos confiables revocados (explícito, revoke-all o cambio de contraseña)",
	})

	AlertEmailsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "security_alert_emails_sent_total",
		Help: "Emails de alerta de seguridad enviados",
	})
)

// Register registra las métricas en el registry dado (default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		TwoFactorEnrollments,
		TwoFactorVerifyFailures,
		TwoFactorDisables,
		BackupCodesRedeemed,
		DevicesTrusted,
		DevicesRevoked,
		AlertEmailsSent,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
