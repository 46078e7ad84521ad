package security

import (
	"errors"
	"fmt"
	"net/http"

	dto "github.com/J4CIVY/bskmt-security/internal/http/dto/security"
	httperrors "github.com/J4CIVY/bskmt-security/internal/http/errors"
	"github.com/J4CIVY/bskmt-security/internal/http/helpers"
	"github.com/J4CIVY/bskmt-security/internal/http/middlewares"
	svc "github.com/J4CIVY/bskmt-security/internal/http/services/security"
)

// TwoFactorController maneja los endpoints del ciclo de vida 2FA.
type TwoFactorController struct {
	service svc.EnrollmentService
}

// NewTwoFactorController crea el controller de 2FA.
func NewTwoFactorController(service svc.EnrollmentService) *TwoFactorController {
	return &TwoFactorController{service: service}
}

// Enroll maneja POST /v1/security/2fa/enroll
func (c *TwoFactorController) Enroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middlewares.GetUserID(ctx)
	emailAddr := middlewares.ClaimString(middlewares.GetClaims(ctx), "email")

	result, err := c.service.BeginEnroll(ctx, userID, emailAddr)
	if err != nil {
		writeTwoFactorError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, result)
}

// AckScan maneja POST /v1/security/2fa/enroll/ack
func (c *TwoFactorController) AckScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := c.service.AckScan(ctx, middlewares.GetUserID(ctx))
	if err != nil {
		writeTwoFactorError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, result)
}

// Verify maneja POST /v1/security/2fa/verify
func (c *TwoFactorController) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.VerifyRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	result, err := c.service.SubmitVerification(ctx, middlewares.GetUserID(ctx), req.Code)
	if err != nil {
		writeTwoFactorError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, result)
}

// ExportBackupCodes maneja GET /v1/security/2fa/backup-codes/export
// Descarga one-shot en texto plano; 404 después del primer consumo o TTL.
func (c *TwoFactorController) ExportBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := c.service.ExportBackupCodes(ctx, middlewares.GetUserID(ctx))
	if err != nil {
		writeTwoFactorError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="bskmt-backup-codes.txt"`)
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, body)
}

// RedeemBackupCode maneja POST /v1/security/2fa/backup-codes/redeem
func (c *TwoFactorController) RedeemBackupCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.RedeemBackupCodeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	result, err := c.service.RedeemBackupCode(ctx, middlewares.GetUserID(ctx), req.Code)
	if err != nil {
		writeTwoFactorError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, result)
}

// Cancel maneja POST /v1/security/2fa/cancel
func (c *TwoFactorController) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.service.CancelEnroll(ctx, middlewares.GetUserID(ctx)); err != nil {
		writeTwoFactorError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "enrolamiento cancelado"})
}

// Disable maneja POST /v1/security/2fa/disable
func (c *TwoFactorController) Disable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := c.service.BeginDisable(ctx, middlewares.GetUserID(ctx))
	if err != nil {
		writeTwoFactorError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, result)
}

// ConfirmDisable maneja POST /v1/security/2fa/disable/confirm
func (c *TwoFactorController) ConfirmDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.ConfirmDisableRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	if err := c.service.ConfirmDisable(ctx, middlewares.GetUserID(ctx), req.Password); err != nil {
		writeTwoFactorError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "verificación en dos pasos desactivada"})
}

// ─── Helpers ───

func writeTwoFactorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrAlreadyEnrolled):
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("2FA ya está habilitado"))

	case errors.Is(err, svc.ErrNotEnrolled):
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("2FA no está habilitado"))

	case errors.Is(err, svc.ErrNoPendingEnroll):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("no hay enrolamiento en curso"))

	case errors.Is(err, svc.ErrWrongEnrollState):
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("el enrolamiento no está en el estado esperado"))

	case errors.Is(err, svc.ErrInvalidCode):
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("el código debe tener el formato esperado"))

	case errors.Is(err, svc.ErrVerificationFailed):
		httperrors.WriteError(w, httperrors.ErrVerificationFailed)

	case errors.Is(err, svc.ErrExportGone):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("la descarga de códigos ya no está disponible"))

	case errors.Is(err, svc.ErrNoDisableTicket):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("no hay confirmación de deshabilitado pendiente"))

	case errors.Is(err, svc.ErrInvalidPassword):
		httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("contraseña incorrecta"))

	case errors.Is(err, svc.ErrUserNotFound):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("usuario no encontrado"))

	default:
		httperrors.WriteError(w, httperrors.ErrPersistence)
	}
}
