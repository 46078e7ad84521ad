package security

import (
	"net/http"

	dto "github.com/J4CIVY/bskmt-security/internal/http/dto/security"
	httperrors "github.com/J4CIVY/bskmt-security/internal/http/errors"
	"github.com/J4CIVY/bskmt-security/internal/http/helpers"
	"github.com/J4CIVY/bskmt-security/internal/http/middlewares"
	svc "github.com/J4CIVY/bskmt-security/internal/http/services/security"
)

// AlertsController maneja la preferencia de alertas de seguridad.
type AlertsController struct {
	service svc.AlertsService
}

// NewAlertsController crea el controller de preferencias.
func NewAlertsController(service svc.AlertsService) *AlertsController {
	return &AlertsController{service: service}
}

// Get maneja GET /v1/security/alerts
func (c *AlertsController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := c.service.Get(ctx, middlewares.GetUserID(ctx))
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrPersistence)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, result)
}

// Set maneja PUT /v1/security/alerts
// En fallo de persistencia el error lleva implícito que el cliente debe
// revertir su toggle optimista; en éxito la respuesta incluye Previous.
func (c *AlertsController) Set(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.SetAlertsRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.SecurityAlerts == nil {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("security_alerts es requerido"))
		return
	}

	result, err := c.service.Set(ctx, middlewares.GetUserID(ctx), *req.SecurityAlerts)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrPersistence.WithDetail("la preferencia no se guardó; revertir al valor previo"))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, result)
}
