// Package security contiene los servicios del subsistema de seguridad de
// cuentas: enrolamiento 2FA, dispositivos confiables, preferencias de alertas
// y cambio de contraseña con invalidación de dispositivos.
package security

import (
	"context"
	"fmt"

	dto "github.com/J4CIVY/bskmt-security/internal/http/dto/security"
)

// EnrollmentService maneja el ciclo de vida del enrolamiento 2FA.
type EnrollmentService interface {
	// BeginEnroll emite secreto + códigos de respaldo y deja el enrolamiento
	// pendiente en estado "scan". Un enrolamiento pendiente previo se pisa
	// (el secreto anterior queda inválido).
	BeginEnroll(ctx context.Context, userID, email string) (*dto.EnrollResponse, error)

	// AckScan transiciona scan -> verify. No valida nada.
	AckScan(ctx context.Context, userID string) (*dto.AckScanResponse, error)

	// SubmitVerification valida el código TOTP contra el secreto pendiente.
	// En éxito habilita 2FA atómicamente y retorna los códigos en texto plano
	// (única vez). En fallo el enrolamiento queda en "verify".
	SubmitVerification(ctx context.Context, userID, code string) (*dto.VerifyResponse, error)

	// ExportBackupCodes consume la entrada one-shot de descarga.
	// Retorna ErrExportGone después del primer consumo o del TTL.
	ExportBackupCodes(ctx context.Context, userID string) (string, error)

	// RedeemBackupCode consume un código de respaldo (un solo uso).
	RedeemBackupCode(ctx context.Context, userID, code string) (*dto.RedeemBackupCodeResponse, error)

	// CancelEnroll descarta el enrolamiento pendiente. Sin efectos persistidos.
	CancelEnroll(ctx context.Context, userID string) error

	// BeginDisable arma el ticket de confirmación de deshabilitado.
	BeginDisable(ctx context.Context, userID string) (*dto.DisableResponse, error)

	// ConfirmDisable exige ticket vigente + re-ingreso de contraseña y
	// apaga 2FA atómicamente (perfil + códigos). No toca dispositivos.
	ConfirmDisable(ctx context.Context, userID, password string) error
}

// DeviceService maneja el registro de dispositivos confiables.
type DeviceService interface {
	List(ctx context.Context, userID string) (*dto.ListDevicesResponse, error)
	Trust(ctx context.Context, userID string, dctx DeviceContext) (*dto.TrustDeviceResponse, error)
	Revoke(ctx context.Context, userID, deviceID string) error
	RevokeAll(ctx context.Context, userID string) (*dto.RevokeAllResponse, error)
}

// DeviceContext es el contexto del request del que se deriva el fingerprint.
type DeviceContext struct {
	UserAgent string
	IP        string

	// Descriptivos, declarados por el cliente. Nunca autorizan nada.
	DeviceType string
	Browser    string
	OS         string
	City       string
	Country    string
}

// AlertsService maneja la preferencia de alertas de seguridad.
type AlertsService interface {
	Get(ctx context.Context, userID string) (*dto.AlertsResponse, error)
	Set(ctx context.Context, userID string, enabled bool) (*dto.SetAlertsResponse, error)
}

// PasswordService maneja el cambio de contraseña con la regla de
// invalidación: todo cambio revoca todos los dispositivos confiables.
type PasswordService interface {
	ChangePassword(ctx context.Context, userID, current, next string) (*dto.ChangePasswordResponse, error)
}

// Errores de los servicios de seguridad.
var (
	ErrAlreadyEnrolled    = fmt.Errorf("2fa already enrolled")
	ErrNotEnrolled        = fmt.Errorf("2fa not enrolled")
	ErrNoPendingEnroll    = fmt.Errorf("no pending enrollment")
	ErrWrongEnrollState   = fmt.Errorf("enrollment in wrong state")
	ErrInvalidCode        = fmt.Errorf("malformed code")
	ErrVerificationFailed = fmt.Errorf("code verification failed")
	ErrExportGone         = fmt.Errorf("backup code export not available")
	ErrNoDisableTicket    = fmt.Errorf("no pending disable confirmation")
	ErrInvalidPassword    = fmt.Errorf("invalid password")
	ErrWeakPassword       = fmt.Errorf("new password too short")
	ErrDeviceLimit        = fmt.Errorf("trusted device limit reached")
	ErrDeviceContext      = fmt.Errorf("device context insufficient")
	ErrDeviceNotFound     = fmt.Errorf("device not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrPersistence        = fmt.Errorf("persistence failure")
)
