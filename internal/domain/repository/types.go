package repository

import "time"

// TwoFactorProfile representa la configuración 2FA (TOTP) persistida de un usuario.
// La fila existe únicamente mientras 2FA está habilitado: el alta ocurre al
// confirmar el enrolamiento y la baja al deshabilitarlo. Un usuario sin fila
// está en estado Disabled.
type TwoFactorProfile struct {
	UserID          string
	SecretEncrypted string
	ConfirmedAt     time.Time
	LastUsedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BackupCode es un código de recuperación de un solo uso, persistido hasheado.
// ConsumedAt nunca vuelve a nil una vez seteado.
type BackupCode struct {
	UserID     string
	CodeHash   string
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// TrustedDevice es un dispositivo autorizado a omitir 2FA por un período acotado.
//
// ExpiresAt = CreatedAt + 30 días al momento de crear y no se extiende por uso
// (sin expiración deslizante). Un dispositivo revocado se borra, no se marca.
// La expiración se evalúa perezosamente en cada lectura: una entrada vencida
// se trata como ausente aunque siga físicamente almacenada.
type TrustedDevice struct {
	ID          string // uuid
	UserID      string
	Fingerprint string

	// Campos descriptivos: solo informativos, jamás se usan para autorizar.
	DeviceType string // desktop | mobile | tablet
	Browser    string
	OS         string
	IPAddress  string
	City       string
	Country    string

	CreatedAt time.Time
	LastUsed  time.Time
	ExpiresAt time.Time
}

// Live reporta si el dispositivo sigue vigente en el instante dado.
func (d TrustedDevice) Live(now time.Time) bool {
	return d.ExpiresAt.After(now)
}

// TrustTTL es la vigencia de un dispositivo confiable desde su creación.
const TrustTTL = 30 * 24 * time.Hour

// User es la vista mínima del usuario que necesita este servicio.
// La tabla es propiedad de la aplicación de membresías; acá solo se lee el
// hash de contraseña y el email para los flujos de seguridad.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
