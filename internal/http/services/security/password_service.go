package security

import (
	"context"
	"time"

	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
	"github.com/J4CIVY/bskmt-security/internal/email"
	dto "github.com/J4CIVY/bskmt-security/internal/http/dto/security"
	"github.com/J4CIVY/bskmt-security/internal/metrics"
	"github.com/J4CIVY/bskmt-security/internal/observability/logger"
	"github.com/J4CIVY/bskmt-security/internal/security/password"
)

// MinPasswordLength es el largo mínimo aceptado para contraseñas nuevas.
const MinPasswordLength = 10

// PasswordDeps contiene las dependencias del servicio de contraseña.
type PasswordDeps struct {
	Users  repository.UserRepository
	Prefs  repository.PreferenceRepository
	Sender email.Sender

	Params password.Params // costo argon2id; zero value = password.Default

	Now func() time.Time
}

type passwordService struct {
	deps     PasswordDeps
	notifier *alertNotifier
}

// NewPasswordService crea el servicio de cambio de contraseña.
func NewPasswordService(deps PasswordDeps) PasswordService {
	if deps.Params == (password.Params{}) {
		deps.Params = password.Default
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &passwordService{
		deps: deps,
		notifier: &alertNotifier{
			prefs:  deps.Prefs,
			users:  deps.Users,
			sender: deps.Sender,
		},
	}
}

// ChangePassword verifica la contraseña actual, hashea la nueva y ejecuta
// el cambio + revocación de dispositivos como UNA SOLA operación de store.
//
// Regla transversal: ningún camino de cambio de contraseña puede dejar
// dispositivos confiables vivos. La regla vive en el store, no acá; este
// servicio solo llama a la operación combinada.
func (s *passwordService) ChangePassword(ctx context.Context, userID, current, next string) (*dto.ChangePasswordResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("security.password"),
		logger.Op("ChangePassword"),
		logger.UserID(userID),
	)

	if len(next) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	u, err := s.deps.Users.GetUserByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, ErrPersistence
	}

	if !password.Verify(current, u.PasswordHash) {
		log.Info("contraseña actual incorrecta")
		return nil, ErrInvalidPassword
	}

	newHash, err := password.Hash(s.deps.Params, next)
	if err != nil {
		log.Error("fallo el hashing de la contraseña nueva", logger.Err(err))
		return nil, ErrPersistence
	}

	revoked, err := s.deps.Users.UpdatePasswordAndRevokeDevices(ctx, userID, newHash, s.deps.Now())
	if err != nil {
		log.Error("fallo el cambio de contraseña", logger.Err(err))
		return nil, ErrPersistence
	}

	if revoked > 0 {
		metrics.DevicesRevoked.Add(float64(revoked))
	}
	log.Info("contraseña actualizada", logger.Count(revoked))

	s.notifier.notify(ctx, userID, email.AlertPasswordChange, email.AlertVars{Count: revoked})

	return &dto.ChangePasswordResponse{Changed: true, DevicesRevoked: revoked}, nil
}
