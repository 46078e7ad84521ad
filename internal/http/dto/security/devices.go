package security

// TrustDeviceRequest lleva el contexto descriptivo del dispositivo.
// El fingerprint NUNCA viene del cliente: se deriva server-side de
// User-Agent + plataforma + IP.
type TrustDeviceRequest struct {
	DeviceType string `json:"device_type,omitempty"` // desktop | mobile | tablet
	Browser    string `json:"browser,omitempty"`
	OS         string `json:"os,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
}

// DeviceView es la representación pública de un dispositivo confiable.
// El fingerprint no se expone.
type DeviceView struct {
	ID         string `json:"id"`
	DeviceType string `json:"device_type"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	IPAddress  string `json:"ip_address"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	CreatedAt  string `json:"created_at"` // RFC3339
	LastUsed   string `json:"last_used"`
	ExpiresAt  string `json:"expires_at"`
}

// TrustDeviceResponse retorna el dispositivo registrado (o refrescado).
type TrustDeviceResponse struct {
	Device  DeviceView `json:"device"`
	Created bool       `json:"created"` // false = ya existía, solo refresh de last_used
}

// ListDevicesResponse retorna los dispositivos vigentes del usuario.
type ListDevicesResponse struct {
	Devices []DeviceView `json:"devices"`
	Count   int          `json:"count"`
}

// RevokeAllResponse reporta cuántos dispositivos vigentes se revocaron.
type RevokeAllResponse struct {
	RevokedCount int `json:"revoked_count"`
}
