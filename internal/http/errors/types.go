package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la aplicación.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Causa original, útil para logs, no se expone al cliente
}

// Error implementa la interfaz error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError.
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// FromError intenta convertir un error genérico en un AppError.
// Si no es un AppError, devuelve un error interno genérico conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// WithDetail agrega detalle al error. Devuelve una COPIA para no mutar las
// variables globales base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause agrega la causa. Devuelve una COPIA.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// =================================================================================
// LISTA DE ERRORES PREDEFINIDOS
// =================================================================================

var (
	// ── Taxonomía del subsistema ──

	// ErrValidation: entrada malformada (código no numérico, largo incorrecto).
	// Se recupera localmente, sin transición de estado.
	ErrValidation = New(http.StatusBadRequest, "validation_error", "Entrada inválida")

	// ErrVerificationFailed: código bien formado que no verifica.
	// El enrolamiento queda en espera de verificación.
	ErrVerificationFailed = New(http.StatusUnprocessableEntity, "verification_failed", "El código ingresado no es válido")

	// ErrDeviceTrust: límite de dispositivos alcanzado o fingerprint no derivable.
	ErrDeviceTrust = New(http.StatusConflict, "device_trust_error", "No se pudo registrar el dispositivo")

	// ErrNotFound: el recurso no existe o no pertenece al usuario.
	ErrNotFound = New(http.StatusNotFound, "not_found", "No encontrado")

	// ErrPersistence: fallo del backing store. Para rutas optimistas el
	// cliente debe revertir al valor previo incluido en la respuesta de error.
	ErrPersistence = New(http.StatusInternalServerError, "persistence_error", "Error de persistencia")

	// ── Transporte / genéricos ──

	ErrBadRequest       = New(http.StatusBadRequest, "bad_request", "Request inválido")
	ErrInvalidJSON      = New(http.StatusBadRequest, "invalid_json", "JSON inválido")
	ErrMissingFields    = New(http.StatusBadRequest, "missing_fields", "Faltan campos requeridos")
	ErrUnauthorized     = New(http.StatusUnauthorized, "unauthorized", "No autenticado")
	ErrForbidden        = New(http.StatusForbidden, "forbidden", "No autorizado")
	ErrConflict         = New(http.StatusConflict, "conflict", "Estado en conflicto")
	ErrMethodNotAllowed = New(http.StatusMethodNotAllowed, "method_not_allowed", "Método no permitido")
	ErrRateLimited      = New(http.StatusTooManyRequests, "rate_limited", "Demasiados intentos. Por favor espera.")
	ErrInternal         = New(http.StatusInternalServerError, "internal_error", "Error interno")
)
