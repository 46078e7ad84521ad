// Package security contiene los DTOs de los endpoints de seguridad de cuenta.
package security

// EnrollResponse es la respuesta al iniciar un enrolamiento 2FA.
// El secreto solo se entrega acá; nunca se vuelve a mostrar.
type EnrollResponse struct {
	SecretBase32 string `json:"secret_base32"`
	OTPAuthURL   string `json:"otpauth_url"`
	State        string `json:"state"` // awaiting_scan
}

// AckScanResponse confirma la transición scan -> verify.
type AckScanResponse struct {
	State string `json:"state"` // awaiting_verification
}

// VerifyRequest lleva el código TOTP ingresado por el usuario.
type VerifyRequest struct {
	Code string `json:"code"`
}

// VerifyResponse entrega los códigos de respaldo en texto plano.
// Es la única vez que se muestran completos.
type VerifyResponse struct {
	Enabled     bool     `json:"enabled"`
	BackupCodes []string `json:"backup_codes"`
}

// RedeemBackupCodeRequest lleva un código de respaldo a consumir.
type RedeemBackupCodeRequest struct {
	Code string `json:"code"`
}

// RedeemBackupCodeResponse informa el resultado del canje.
type RedeemBackupCodeResponse struct {
	Redeemed  bool `json:"redeemed"`
	Remaining int  `json:"remaining"`
}

// ConfirmDisableRequest exige re-ingreso de contraseña para apagar 2FA.
type ConfirmDisableRequest struct {
	Password string `json:"password"`
}

// DisableResponse confirma que el ticket de deshabilitado fue emitido.
type DisableResponse struct {
	State string `json:"state"` // awaiting_disable_confirmation
}

// MessageResponse es una respuesta genérica con mensaje.
type MessageResponse struct {
	Message string `json:"message"`
}
