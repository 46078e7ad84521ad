package security

import (
	"context"

	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
	dto "github.com/J4CIVY/bskmt-security/internal/http/dto/security"
	"github.com/J4CIVY/bskmt-security/internal/observability/logger"
)

// AlertsDeps contiene las dependencias del servicio de preferencias.
type AlertsDeps struct {
	Prefs repository.PreferenceRepository
}

type alertsService struct {
	deps AlertsDeps
}

// NewAlertsService crea el servicio de preferencia de alertas de seguridad.
func NewAlertsService(deps AlertsDeps) AlertsService {
	return &alertsService{deps: deps}
}

func (s *alertsService) Get(ctx context.Context, userID string) (*dto.AlertsResponse, error) {
	enabled, err := s.deps.Prefs.GetSecurityAlerts(ctx, userID)
	if err != nil {
		logger.From(ctx).Error("fallo la lectura de preferencias", logger.UserID(userID), logger.Err(err))
		return nil, ErrPersistence
	}
	return &dto.AlertsResponse{SecurityAlerts: enabled}, nil
}

func (s *alertsService) Set(ctx context.Context, userID string, enabled bool) (*dto.SetAlertsResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("security.alerts"),
		logger.Op("Set"),
		logger.UserID(userID),
	)

	// El contrato devuelve SIEMPRE el valor previo: el cliente hace la
	// actualización optimista y revierte a Previous si el commit falla.
	previous, err := s.deps.Prefs.SetSecurityAlerts(ctx, userID, enabled)
	if err != nil {
		log.Error("fallo la persistencia de la preferencia", logger.Err(err))
		return nil, ErrPersistence
	}

	log.Info("preferencia de alertas actualizada",
		logger.Any("previous", previous), logger.Any("current", enabled))

	return &dto.SetAlertsResponse{SecurityAlerts: enabled, Previous: previous}, nil
}
