// Package security contiene los controllers del subsistema de seguridad de
// cuentas.
package security

import svc "github.com/J4CIVY/bskmt-security/internal/http/services/security"

// Controllers agrupa todos los controllers del dominio security.
type Controllers struct {
	TwoFactor *TwoFactorController
	Devices   *DevicesController
	Alerts    *AlertsController
	Password  *PasswordController
}

// NewControllers crea el agregador de controllers security.
func NewControllers(s svc.Services) *Controllers {
	return &Controllers{
		TwoFactor: NewTwoFactorController(s.Enrollment),
		Devices:   NewDevicesController(s.Devices),
		Alerts:    NewAlertsController(s.Alerts),
		Password:  NewPasswordController(s.Password),
	}
}
