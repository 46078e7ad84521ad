package email

import "fmt"

// AlertKind identifica el evento de seguridad notificado.
type AlertKind string

const (
	AlertDeviceTrusted  AlertKind = "device_trusted"
	AlertDeviceRevoked  AlertKind = "device_revoked"
	AlertDevicesCleared AlertKind = "devices_cleared"
	AlertTwoFactorOn    AlertKind = "twofactor_enabled"
	AlertTwoFactorOff   AlertKind = "twofactor_disabled"
	AlertPasswordChange AlertKind = "password_changed"
)

// AlertVars son las variables del template de alerta.
type AlertVars struct {
	Device   string // descripción del dispositivo (browser / os), si aplica
	Location string // city, country, si aplica
	Count    int    // dispositivos revocados, si aplica
}

type alertTemplate struct {
	subject string
	text    func(v AlertVars) string
}

var alertTemplates = map[AlertKind]alertTemplate{
	AlertDeviceTrusted: {
		subject: "BSK MT — Nuevo dispositivo de confianza",
		text: func(v AlertVars) string {
			return fmt.Sprintf("Se agregó un dispositivo de confianza a tu cuenta: %s (%s). "+
				"Este dispositivo podrá omitir la verificación en dos pasos durante 30 días. "+
				"Si no fuiste vos, revocalo desde Seguridad de la cuenta y cambiá tu contraseña.", v.Device, v.Location)
		},
	},
	AlertDeviceRevoked: {
		subject: "BSK MT — Dispositivo de confianza revocado",
		text: func(v AlertVars) string {
			return fmt.Sprintf("Se revocó un dispositivo de confianza de tu cuenta: %s.", v.Device)
		},
	},
	AlertDevicesCleared: {
		subject: "BSK MT — Dispositivos de confianza revocados",
		text: func(v AlertVars) string {
			return fmt.Sprintf("Se revocaron %d dispositivos de confianza de tu cuenta. "+
				"Todos los dispositivos volverán a pedir verificación en dos pasos.", v.Count)
		},
	},
	AlertTwoFactorOn: {
		subject: "BSK MT — Verificación en dos pasos activada",
		text: func(AlertVars) string {
			return "La verificación en dos pasos quedó activada en tu cuenta. " +
				"Guardá tus códigos de respaldo en un lugar seguro: no se vuelven a mostrar."
		},
	},
	AlertTwoFactorOff: {
		subject: "BSK MT — Verificación en dos pasos desactivada",
		text: func(AlertVars) string {
			return "La verificación en dos pasos fue desactivada en tu cuenta. " +
				"Si no fuiste vos, cambiá tu contraseña inmediatamente."
		},
	},
	AlertPasswordChange: {
		subject: "BSK MT — Contraseña actualizada",
		text: func(v AlertVars) string {
			return fmt.Sprintf("Tu contraseña fue actualizada. Por seguridad se cerraron las sesiones "+
				"de confianza en todos tus dispositivos (%d revocados).", v.Count)
		},
	},
}

// ComposeAlert arma subject y cuerpo de texto para un evento de seguridad.
func ComposeAlert(kind AlertKind, v AlertVars) (subject, textBody string, ok bool) {
	t, ok := alertTemplates[kind]
	if !ok {
		return "", "", false
	}
	return t.subject, t.text(v), true
}
