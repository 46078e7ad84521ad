package security

import (
	"errors"
	"net/http"

	dto "github.com/J4CIVY/bskmt-security/internal/http/dto/security"
	httperrors "github.com/J4CIVY/bskmt-security/internal/http/errors"
	"github.com/J4CIVY/bskmt-security/internal/http/helpers"
	"github.com/J4CIVY/bskmt-security/internal/http/middlewares"
	svc "github.com/J4CIVY/bskmt-security/internal/http/services/security"
)

// PasswordController maneja el cambio de contraseña.
type PasswordController struct {
	service svc.PasswordService
}

// NewPasswordController crea el controller de contraseña.
func NewPasswordController(service svc.PasswordService) *PasswordController {
	return &PasswordController{service: service}
}

// Change maneja POST /v1/security/password
func (c *PasswordController) Change(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.ChangePasswordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}

	result, err := c.service.ChangePassword(ctx, middlewares.GetUserID(ctx), req.CurrentPassword, req.NewPassword)
	if err != nil {
		writePasswordError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, result)
}

func writePasswordError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrWeakPassword):
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("la contraseña nueva es demasiado corta"))

	case errors.Is(err, svc.ErrInvalidPassword):
		httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("contraseña actual incorrecta"))

	case errors.Is(err, svc.ErrUserNotFound):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("usuario no encontrado"))

	default:
		httperrors.WriteError(w, httperrors.ErrPersistence)
	}
}
