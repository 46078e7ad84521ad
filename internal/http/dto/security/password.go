package security

// ChangePasswordRequest lleva la contraseña actual y la nueva.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePasswordResponse informa el resultado del cambio, incluyendo
// cuántos dispositivos confiables se revocaron en la misma operación.
type ChangePasswordResponse struct {
	Changed        bool `json:"changed"`
	DevicesRevoked int  `json:"devices_revoked"`
}
