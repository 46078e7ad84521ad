package security

// Services agrupa todos los services del dominio security.
type Services struct {
	Enrollment EnrollmentService
	Devices    DeviceService
	Alerts     AlertsService
	Password   PasswordService
}
