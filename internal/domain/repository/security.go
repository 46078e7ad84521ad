// Package repository define los contratos de persistencia del subsistema
// de seguridad de cuentas: 2FA, dispositivos confiables, preferencias y la
// regla de invalidación por cambio de contraseña.
package repository

import (
	"context"
	"time"
)

// TwoFactorRepository define operaciones sobre el perfil 2FA y sus códigos
// de respaldo.
//
// Invariante: los códigos de respaldo son no-vacíos si y solo si el perfil
// existe (2FA habilitado). EnableTwoFactor y DisableTwoFactor son atómicos
// para sostenerlo.
type TwoFactorRepository interface {
	// GetTwoFactor obtiene el perfil 2FA confirmado de un usuario.
	// Retorna ErrNotFound si el usuario no tiene 2FA habilitado.
	GetTwoFactor(ctx context.Context, userID string) (*TwoFactorProfile, error)

	// EnableTwoFactor habilita 2FA: persiste el secreto cifrado y los hashes
	// de los códigos de respaldo en una sola operación. Reemplaza cualquier
	// perfil previo (los códigos nunca se reutilizan entre enrolamientos).
	EnableTwoFactor(ctx context.Context, userID, secretEnc string, codeHashes []string, at time.Time) error

	// DisableTwoFactor elimina atómicamente el perfil y todos los códigos de
	// respaldo. No toca los dispositivos confiables.
	DisableTwoFactor(ctx context.Context, userID string) error

	// UpdateTwoFactorUsedAt actualiza el último uso (anti-replay del contador TOTP).
	UpdateTwoFactorUsedAt(ctx context.Context, userID string, at time.Time) error

	// UseBackupCode marca un código como consumido. Retorna true solo si el
	// código existía y no estaba consumido (un código consumido jamás vuelve
	// a estar disponible).
	UseBackupCode(ctx context.Context, userID, codeHash string, at time.Time) (bool, error)

	// CountBackupCodes retorna (disponibles, total) para el usuario.
	CountBackupCodes(ctx context.Context, userID string) (remaining, total int, err error)
}

// TrustedDeviceRepository define el registro de dispositivos confiables.
//
// Todas las operaciones están acotadas por userID; un deviceID de otro
// usuario se trata como inexistente. Las mutaciones de un mismo usuario se
// serializan (lock por usuario) para que trust y revokeAll concurrentes no
// dejen conteos inconsistentes.
type TrustedDeviceRepository interface {
	// ListLiveDevices retorna solo entradas vigentes (expires_at > now).
	// Las vencidas se excluyen aunque sigan almacenadas.
	ListLiveDevices(ctx context.Context, userID string, now time.Time) ([]TrustedDevice, error)

	// TrustDevice registra un dispositivo. Si ya existe una entrada vigente
	// con el mismo fingerprint, refresca LastUsed y la retorna sin tocar
	// ExpiresAt (created=false). Si no, crea una nueva con
	// ExpiresAt = now + TrustTTL (created=true). Retorna ErrDeviceLimit si
	// el usuario ya tiene maxDevices entradas vigentes.
	TrustDevice(ctx context.Context, d TrustedDevice, now time.Time, maxDevices int) (*TrustedDevice, bool, error)

	// RevokeDevice borra la entrada si pertenece al usuario.
	// Retorna ErrNotFound en caso contrario (incluye re-revocar: decisión
	// documentada, el caller lo muestra como advertencia no-op).
	RevokeDevice(ctx context.Context, userID, deviceID string) error

	// RevokeAllDevices borra todas las entradas del usuario y retorna cuántas
	// vigentes se eliminaron en el momento de la ejecución.
	RevokeAllDevices(ctx context.Context, userID string, now time.Time) (int, error)

	// PurgeExpiredDevices elimina entradas vencidas de todos los usuarios.
	// Optimización operativa: la corrección nunca depende de esta limpieza.
	PurgeExpiredDevices(ctx context.Context, now time.Time) (int, error)
}

// PreferenceRepository define el almacén de preferencias de seguridad.
// Cada preferencia es una clave independiente por usuario: un fallo parcial
// no puede corromper otros campos.
type PreferenceRepository interface {
	// GetSecurityAlerts retorna la preferencia de alertas. Default: true.
	GetSecurityAlerts(ctx context.Context, userID string) (bool, error)

	// SetSecurityAlerts persiste el valor y retorna el valor previo, para que
	// el caller pueda revertir una actualización optimista si algo más falla.
	SetSecurityAlerts(ctx context.Context, userID string, enabled bool) (previous bool, err error)
}

// UserRepository expone lo mínimo del usuario que necesita este servicio.
type UserRepository interface {
	// GetUserByID retorna ErrNotFound si el usuario no existe.
	GetUserByID(ctx context.Context, userID string) (*User, error)

	// UpdatePasswordAndRevokeDevices cambia el hash de contraseña y revoca
	// todos los dispositivos confiables del usuario EN LA MISMA operación
	// lógica. Retorna cuántos dispositivos vigentes se revocaron.
	//
	// Regla de invalidación transversal: ningún cambio de contraseña puede
	// dejar dispositivos confiables vivos. Por eso la operación es una sola
	// y no dos llamadas separadas que un caller podría omitir.
	UpdatePasswordAndRevokeDevices(ctx context.Context, userID, newHash string, at time.Time) (revoked int, err error)
}
