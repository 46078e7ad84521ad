package security

// AlertsResponse retorna la preferencia actual de alertas de seguridad.
type AlertsResponse struct {
	SecurityAlerts bool `json:"security_alerts"`
}

// SetAlertsRequest actualiza la preferencia.
// Puntero para distinguir "false" de campo ausente.
type SetAlertsRequest struct {
	SecurityAlerts *bool `json:"security_alerts"`
}

// SetAlertsResponse devuelve el valor persistido y el previo.
// El cliente usa Previous para revertir su actualización optimista
// si otra cosa falla después del commit.
type SetAlertsResponse struct {
	SecurityAlerts bool `json:"security_alerts"`
	Previous       bool `json:"previous"`
}
