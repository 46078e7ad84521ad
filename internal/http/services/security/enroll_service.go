package security

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/J4CIVY/bskmt-security/internal/cache"
	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
	"github.com/J4CIVY/bskmt-security/internal/email"
	dto "github.com/J4CIVY/bskmt-security/internal/http/dto/security"
	"github.com/J4CIVY/bskmt-security/internal/metrics"
	"github.com/J4CIVY/bskmt-security/internal/observability/logger"
	"github.com/J4CIVY/bskmt-security/internal/security/backupcode"
	"github.com/J4CIVY/bskmt-security/internal/security/password"
	"github.com/J4CIVY/bskmt-security/internal/security/secretbox"
	"github.com/J4CIVY/bskmt-security/internal/security/totp"
)

// Estados del enrolamiento pendiente (viven solo en cache).
const (
	pendingStateScan   = "scan"
	pendingStateVerify = "verify"
)

// Keys de cache del ciclo de vida 2FA.
const (
	keyEnrollPrefix  = "2fa:enroll:"
	keyCodesPrefix   = "2fa:codes:"
	keyDisablePrefix = "2fa:disable:"
)

// pendingEnrollment es el registro transitorio de un enrolamiento en curso.
// El secreto y los códigos viajan cifrados: el cache jamás ve texto plano.
type pendingEnrollment struct {
	State     string `json:"state"`
	SecretEnc string `json:"secret_enc"`
	CodesEnc  string `json:"codes_enc"`
	IssuedAt  int64  `json:"issued_at"`
}

// EnrollmentDeps contiene las dependencias del servicio de enrolamiento.
type EnrollmentDeps struct {
	TwoFactor repository.TwoFactorRepository
	Users     repository.UserRepository
	Prefs     repository.PreferenceRepository
	Cache     cache.Client
	Sender    email.Sender

	Issuer      string        // nombre mostrado en la app autenticadora
	WindowSteps int           // tolerancia TOTP en pasos de 30s
	PendingTTL  time.Duration // vida del enrolamiento pendiente
	DisableTTL  time.Duration // vida del ticket de deshabilitado
	ExportTTL   time.Duration // vida de la entrada one-shot de descarga

	// Now permite inyectar el reloj en tests. nil = time.Now.
	Now func() time.Time
}

type enrollmentService struct {
	deps     EnrollmentDeps
	notifier *alertNotifier
}

// NewEnrollmentService crea el servicio de enrolamiento 2FA.
func NewEnrollmentService(deps EnrollmentDeps) EnrollmentService {
	if deps.WindowSteps <= 0 {
		deps.WindowSteps = 1
	}
	if deps.PendingTTL <= 0 {
		deps.PendingTTL = 15 * time.Minute
	}
	if deps.DisableTTL <= 0 {
		deps.DisableTTL = 5 * time.Minute
	}
	if deps.ExportTTL <= 0 {
		deps.ExportTTL = 5 * time.Minute
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &enrollmentService{
		deps: deps,
		notifier: &alertNotifier{
			prefs:  deps.Prefs,
			users:  deps.Users,
			sender: deps.Sender,
		},
	}
}

func (s *enrollmentService) BeginEnroll(ctx context.Context, userID, emailAddr string) (*dto.EnrollResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("security.enroll"),
		logger.Op("BeginEnroll"),
		logger.UserID(userID),
	)

	// Ya habilitado -> conflicto. El perfil persistido es la verdad.
	if _, err := s.deps.TwoFactor.GetTwoFactor(ctx, userID); err == nil {
		return nil, ErrAlreadyEnrolled
	} else if !repository.IsNotFound(err) {
		log.Error("fallo la lectura del perfil 2FA", logger.Err(err))
		return nil, ErrPersistence
	}

	if emailAddr == "" {
		u, err := s.deps.Users.GetUserByID(ctx, userID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, ErrUserNotFound
			}
			return nil, ErrPersistence
		}
		emailAddr = u.Email
	}

	// Emitir secreto + 8 códigos de respaldo.
	_, secretB32, err := totp.GenerateSecret()
	if err != nil {
		log.Error("fallo la generación del secreto", logger.Err(err))
		return nil, ErrPersistence
	}
	codes, err := backupcode.Generate(backupcode.BatchSize)
	if err != nil {
		log.Error("fallo la generación de códigos", logger.Err(err))
		return nil, ErrPersistence
	}

	secretEnc, err := secretbox.Encrypt(secretB32)
	if err != nil {
		log.Error("fallo el cifrado del secreto", logger.Err(err))
		return nil, ErrPersistence
	}
	codesJSON, _ := json.Marshal(codes)
	codesEnc, err := secretbox.Encrypt(string(codesJSON))
	if err != nil {
		log.Error("fallo el cifrado de códigos", logger.Err(err))
		return nil, ErrPersistence
	}

	pending := pendingEnrollment{
		State:     pendingStateScan,
		SecretEnc: secretEnc,
		CodesEnc:  codesEnc,
		IssuedAt:  s.deps.Now().Unix(),
	}
	raw, _ := json.Marshal(pending)

	// Pisa cualquier enrolamiento pendiente previo: el secreto anterior
	// queda inválido en el acto.
	if err := s.deps.Cache.Set(ctx, keyEnrollPrefix+userID, string(raw), s.deps.PendingTTL); err != nil {
		log.Error("fallo el guardado del enrolamiento pendiente", logger.Err(err))
		return nil, ErrPersistence
	}

	log.Info("enrolamiento 2FA iniciado")

	return &dto.EnrollResponse{
		SecretBase32: secretB32,
		OTPAuthURL:   totp.OTPAuthURL(s.deps.Issuer, emailAddr, secretB32),
		State:        "awaiting_scan",
	}, nil
}

func (s *enrollmentService) AckScan(ctx context.Context, userID string) (*dto.AckScanResponse, error) {
	pending, err := s.loadPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pending.State != pendingStateScan {
		return nil, ErrWrongEnrollState
	}

	pending.State = pendingStateVerify
	raw, _ := json.Marshal(pending)
	if err := s.deps.Cache.Set(ctx, keyEnrollPrefix+userID, string(raw), s.deps.PendingTTL); err != nil {
		return nil, ErrPersistence
	}
	return &dto.AckScanResponse{State: "awaiting_verification"}, nil
}

func (s *enrollmentService) SubmitVerification(ctx context.Context, userID, code string) (*dto.VerifyResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("security.enroll"),
		logger.Op("SubmitVerification"),
		logger.UserID(userID),
	)

	// Entrada malformada: error de validación, sin transición de estado.
	code = strings.TrimSpace(code)
	if len(code) != 6 || !isDigits(code) {
		return nil, ErrInvalidCode
	}

	pending, err := s.loadPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pending.State != pendingStateVerify {
		return nil, ErrWrongEnrollState
	}

	secretB32, err := secretbox.Decrypt(pending.SecretEnc)
	if err != nil {
		log.Error("fallo el descifrado del secreto pendiente", logger.Err(err))
		return nil, ErrPersistence
	}
	secretRaw, err := totp.DecodeSecret(secretB32)
	if err != nil {
		return nil, ErrPersistence
	}

	ok, _ := totp.Verify(secretRaw, code, s.deps.Now(), s.deps.WindowSteps, nil)
	if !ok {
		metrics.TwoFactorVerifyFailures.Inc()
		log.Info("verificación TOTP fallida")
		// El enrolamiento sigue en "verify"; el usuario puede reintentar.
		return nil, ErrVerificationFailed
	}

	codesJSON, err := secretbox.Decrypt(pending.CodesEnc)
	if err != nil {
		log.Error("fallo el descifrado de códigos pendientes", logger.Err(err))
		return nil, ErrPersistence
	}
	var codes []string
	if err := json.Unmarshal([]byte(codesJSON), &codes); err != nil {
		return nil, ErrPersistence
	}

	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = backupcode.Hash(c)
	}

	// Alta atómica: perfil + hashes en una sola operación. Si falla, el
	// usuario sigue Disabled y el pendiente queda para reintentar.
	now := s.deps.Now()
	if err := s.deps.TwoFactor.EnableTwoFactor(ctx, userID, pending.SecretEnc, hashes, now); err != nil {
		log.Error("fallo la habilitación de 2FA", logger.Err(err))
		return nil, ErrPersistence
	}

	_ = s.deps.Cache.Delete(ctx, keyEnrollPrefix+userID)

	// Armar la entrada one-shot de descarga (texto plano, TTL corto).
	if err := s.deps.Cache.Set(ctx, keyCodesPrefix+userID, strings.Join(codes, "\n"), s.deps.ExportTTL); err != nil {
		// La respuesta ya lleva los códigos; perder la descarga no es fatal.
		log.Warn("no se pudo armar la exportación de códigos", logger.Err(err))
	}

	metrics.TwoFactorEnrollments.Inc()
	log.Info("2FA habilitado")

	s.notifier.notify(ctx, userID, email.AlertTwoFactorOn, email.AlertVars{})

	return &dto.VerifyResponse{Enabled: true, BackupCodes: codes}, nil
}

func (s *enrollmentService) ExportBackupCodes(ctx context.Context, userID string) (string, error) {
	key := keyCodesPrefix + userID
	v, err := s.deps.Cache.Get(ctx, key)
	if err != nil {
		if cache.IsNotFound(err) {
			return "", ErrExportGone
		}
		return "", ErrPersistence
	}
	// One-shot: se consume en la primera descarga.
	_ = s.deps.Cache.Delete(ctx, key)
	return v, nil
}

func (s *enrollmentService) RedeemBackupCode(ctx context.Context, userID, code string) (*dto.RedeemBackupCodeResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("security.enroll"),
		logger.Op("RedeemBackupCode"),
		logger.UserID(userID),
	)

	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != backupcode.CodeLength {
		return nil, ErrInvalidCode
	}

	if _, err := s.deps.TwoFactor.GetTwoFactor(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotEnrolled
		}
		return nil, ErrPersistence
	}

	used, err := s.deps.TwoFactor.UseBackupCode(ctx, userID, backupcode.Hash(code), s.deps.Now())
	if err != nil {
		log.Error("fallo el consumo del código", logger.Err(err))
		return nil, ErrPersistence
	}
	if !used {
		// Código inexistente o ya consumido: jamás vuelve a estar disponible.
		return nil, ErrVerificationFailed
	}

	remaining, _, err := s.deps.TwoFactor.CountBackupCodes(ctx, userID)
	if err != nil {
		remaining = -1
	}

	metrics.BackupCodesRedeemed.Inc()
	log.Info("código de respaldo consumido", logger.Count(remaining))

	return &dto.RedeemBackupCodeResponse{Redeemed: true, Remaining: remaining}, nil
}

func (s *enrollmentService) CancelEnroll(ctx context.Context, userID string) error {
	// Borrar un pendiente inexistente no es error: cancelar es idempotente.
	if err := s.deps.Cache.Delete(ctx, keyEnrollPrefix+userID); err != nil {
		return ErrPersistence
	}
	logger.From(ctx).Info("enrolamiento 2FA cancelado", logger.UserID(userID))
	return nil
}

func (s *enrollmentService) BeginDisable(ctx context.Context, userID string) (*dto.DisableResponse, error) {
	if _, err := s.deps.TwoFactor.GetTwoFactor(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotEnrolled
		}
		return nil, ErrPersistence
	}

	if err := s.deps.Cache.Set(ctx, keyDisablePrefix+userID, "1", s.deps.DisableTTL); err != nil {
		return nil, ErrPersistence
	}
	return &dto.DisableResponse{State: "awaiting_disable_confirmation"}, nil
}

func (s *enrollmentService) ConfirmDisable(ctx context.Context, userID, plainPassword string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("security.enroll"),
		logger.Op("ConfirmDisable"),
		logger.UserID(userID),
	)

	if _, err := s.deps.Cache.Get(ctx, keyDisablePrefix+userID); err != nil {
		if cache.IsNotFound(err) {
			return ErrNoDisableTicket
		}
		return ErrPersistence
	}

	// Barra más alta que el enrolamiento: deshabilitar exige la contraseña.
	u, err := s.deps.Users.GetUserByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrUserNotFound
		}
		return ErrPersistence
	}
	if !password.Verify(plainPassword, u.PasswordHash) {
		log.Info("confirmación de deshabilitado rechazada")
		return ErrInvalidPassword
	}

	// Baja atómica: perfil + códigos de respaldo desaparecen juntos.
	// Los dispositivos confiables NO se tocan.
	if err := s.deps.TwoFactor.DisableTwoFactor(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return ErrNotEnrolled
		}
		log.Error("fallo el deshabilitado de 2FA", logger.Err(err))
		return ErrPersistence
	}

	_ = s.deps.Cache.Delete(ctx, keyDisablePrefix+userID)
	_ = s.deps.Cache.Delete(ctx, keyCodesPrefix+userID)

	metrics.TwoFactorDisables.Inc()
	log.Info("2FA deshabilitado")

	s.notifier.notify(ctx, userID, email.AlertTwoFactorOff, email.AlertVars{})
	return nil
}

// loadPending lee y decodifica el enrolamiento pendiente.
func (s *enrollmentService) loadPending(ctx context.Context, userID string) (*pendingEnrollment, error) {
	raw, err := s.deps.Cache.Get(ctx, keyEnrollPrefix+userID)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, ErrNoPendingEnroll
		}
		return nil, ErrPersistence
	}
	var p pendingEnrollment
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("pending enrollment corrupto: %w", err)
	}
	return &p, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
