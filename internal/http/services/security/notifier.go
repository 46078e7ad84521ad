package security

import (
	"context"

	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
	"github.com/J4CIVY/bskmt-security/internal/email"
	"github.com/J4CIVY/bskmt-security/internal/metrics"
	"github.com/J4CIVY/bskmt-security/internal/observability/logger"
)

// alertNotifier envía emails de alerta de seguridad, respetando la
// preferencia del usuario. Siempre best-effort: un fallo de envío se
// loguea pero nunca hace fallar la operación que lo disparó.
type alertNotifier struct {
	prefs  repository.PreferenceRepository
	users  repository.UserRepository
	sender email.Sender
}

func (n *alertNotifier) notify(ctx context.Context, userID string, kind email.AlertKind, vars email.AlertVars) {
	if n == nil || n.sender == nil {
		return
	}
	log := logger.From(ctx).With(logger.Component("security.alerts"), logger.UserID(userID))

	enabled, err := n.prefs.GetSecurityAlerts(ctx, userID)
	if err != nil {
		log.Warn("no se pudo leer la preferencia de alertas", logger.Err(err))
		return
	}
	if !enabled {
		return
	}

	u, err := n.users.GetUserByID(ctx, userID)
	if err != nil {
		log.Warn("usuario no encontrado para alerta", logger.Err(err))
		return
	}

	subject, body, ok := email.ComposeAlert(kind, vars)
	if !ok {
		return
	}
	if err := n.sender.Send(u.Email, subject, "", body); err != nil {
		log.Warn("fallo el envío de alerta", logger.String("kind", string(kind)), logger.Err(err))
		return
	}
	metrics.AlertEmailsSent.Inc()
}
