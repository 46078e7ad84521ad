package repository

import "errors"

var (
	// ErrNotFound indica que la entidad no existe o no pertenece al usuario.
	ErrNotFound = errors.New("repository: not found")

	// ErrDeviceLimit indica que el usuario alcanzó el máximo de dispositivos confiables.
	ErrDeviceLimit = errors.New("repository: trusted device limit reached")
)

// IsNotFound reporta si err es (o envuelve) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
