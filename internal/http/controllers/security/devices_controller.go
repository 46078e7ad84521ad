package security

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	dto "github.com/J4CIVY/bskmt-security/internal/http/dto/security"
	httperrors "github.com/J4CIVY/bskmt-security/internal/http/errors"
	"github.com/J4CIVY/bskmt-security/internal/http/helpers"
	"github.com/J4CIVY/bskmt-security/internal/http/middlewares"
	svc "github.com/J4CIVY/bskmt-security/internal/http/services/security"
)

// DevicesController maneja los endpoints de dispositivos confiables.
type DevicesController struct {
	service svc.DeviceService
}

// NewDevicesController crea el controller de dispositivos.
func NewDevicesController(service svc.DeviceService) *DevicesController {
	return &DevicesController{service: service}
}

// List maneja GET /v1/security/devices
func (c *DevicesController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := c.service.List(ctx, middlewares.GetUserID(ctx))
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, result)
}

// Trust maneja POST /v1/security/devices/trust
// El body es opcional: solo aporta campos descriptivos. El fingerprint se
// deriva siempre de los headers del request.
func (c *DevicesController) Trust(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.TrustDeviceRequest
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, 16<<10)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			httperrors.WriteError(w, httperrors.ErrInvalidJSON)
			return
		}
	}

	dctx := svc.DeviceContext{
		UserAgent:  r.UserAgent(),
		IP:         clientIP(r),
		DeviceType: req.DeviceType,
		Browser:    req.Browser,
		OS:         req.OS,
		City:       req.City,
		Country:    req.Country,
	}

	result, err := c.service.Trust(ctx, middlewares.GetUserID(ctx), dctx)
	if err != nil {
		writeDeviceError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	helpers.WriteJSON(w, status, result)
}

// Revoke maneja DELETE /v1/security/devices/{deviceID}
func (c *DevicesController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deviceID := chi.URLParam(r, "deviceID")
	if deviceID == "" {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("deviceID requerido"))
		return
	}

	if err := c.service.Revoke(ctx, middlewares.GetUserID(ctx), deviceID); err != nil {
		writeDeviceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "dispositivo revocado"})
}

// RevokeAll maneja DELETE /v1/security/devices
func (c *DevicesController) RevokeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := c.service.RevokeAll(ctx, middlewares.GetUserID(ctx))
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, result)
}

// ─── Helpers ───

// clientIP extrae la IP real del cliente, respetando X-Forwarded-For.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

func writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrDeviceLimit), errors.Is(err, svc.ErrDeviceContext):
		httperrors.WriteError(w, httperrors.ErrDeviceTrust)

	case errors.Is(err, svc.ErrDeviceNotFound):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("el dispositivo no existe o no te pertenece"))

	default:
		httperrors.WriteError(w, httperrors.ErrPersistence)
	}
}
