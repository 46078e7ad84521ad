package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
	"github.com/J4CIVY/bskmt-security/internal/email"
	dto "github.com/J4CIVY/bskmt-security/internal/http/dto/security"
	"github.com/J4CIVY/bskmt-security/internal/metrics"
	"github.com/J4CIVY/bskmt-security/internal/observability/logger"
	tokens "github.com/J4CIVY/bskmt-security/internal/security/token"
)

// DeviceDeps contiene las dependencias del servicio de dispositivos.
type DeviceDeps struct {
	Devices repository.TrustedDeviceRepository
	Users   repository.UserRepository
	Prefs   repository.PreferenceRepository
	Sender  email.Sender

	MaxDevices int // tope de entradas vigentes por usuario

	Now func() time.Time
}

type deviceService struct {
	deps     DeviceDeps
	notifier *alertNotifier
}

// NewDeviceService crea el servicio de dispositivos confiables.
func NewDeviceService(deps DeviceDeps) DeviceService {
	if deps.MaxDevices <= 0 {
		deps.MaxDevices = 10
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &deviceService{
		deps: deps,
		notifier: &alertNotifier{
			prefs:  deps.Prefs,
			users:  deps.Users,
			sender: deps.Sender,
		},
	}
}

// Fingerprint deriva la huella del dispositivo del contexto del request.
// Server-side siempre: el cliente jamás la provee. La forma canónica es
// ua|os|ip para que el mismo navegador desde la misma red colisione en la
// misma entrada (dedup) en vez de acumular duplicados.
func Fingerprint(d DeviceContext) (string, error) {
	ua := strings.TrimSpace(d.UserAgent)
	ip := strings.TrimSpace(d.IP)
	if ua == "" || ip == "" {
		return "", fmt.Errorf("contexto de dispositivo insuficiente")
	}
	canonical := ua + "|" + strings.TrimSpace(d.OS) + "|" + ip
	return tokens.SHA256Hex(canonical), nil
}

func (s *deviceService) List(ctx context.Context, userID string) (*dto.ListDevicesResponse, error) {
	devices, err := s.deps.Devices.ListLiveDevices(ctx, userID, s.deps.Now())
	if err != nil {
		logger.From(ctx).Error("fallo el listado de dispositivos", logger.UserID(userID), logger.Err(err))
		return nil, ErrPersistence
	}

	views := make([]dto.DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, deviceView(d))
	}
	return &dto.ListDevicesResponse{Devices: views, Count: len(views)}, nil
}

func (s *deviceService) Trust(ctx context.Context, userID string, dctx DeviceContext) (*dto.TrustDeviceResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("security.devices"),
		logger.Op("Trust"),
		logger.UserID(userID),
	)

	fp, err := Fingerprint(dctx)
	if err != nil {
		// Sin fingerprint no hay registro posible.
		return nil, ErrDeviceContext
	}

	now := s.deps.Now()
	d := repository.TrustedDevice{
		ID:          uuid.NewString(),
		UserID:      userID,
		Fingerprint: fp,
		DeviceType:  defaultStr(dctx.DeviceType, "desktop"),
		Browser:     dctx.Browser,
		OS:          dctx.OS,
		IPAddress:   dctx.IP,
		City:        dctx.City,
		Country:     dctx.Country,
	}

	stored, created, err := s.deps.Devices.TrustDevice(ctx, d, now, s.deps.MaxDevices)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceLimit) {
			log.Info("tope de dispositivos alcanzado")
			return nil, ErrDeviceLimit
		}
		log.Error("fallo el registro del dispositivo", logger.Err(err))
		return nil, ErrPersistence
	}

	if created {
		metrics.DevicesTrusted.Inc()
		log.Info("dispositivo confiable registrado", logger.DeviceID(stored.ID))
		s.notifier.notify(ctx, userID, email.AlertDeviceTrusted, email.AlertVars{
			Device:   describeDevice(*stored),
			Location: describeLocation(*stored),
		})
	} else {
		log.Debug("dispositivo ya confiable, refresh de last_used", logger.DeviceID(stored.ID))
	}

	return &dto.TrustDeviceResponse{Device: deviceView(*stored), Created: created}, nil
}

func (s *deviceService) Revoke(ctx context.Context, userID, deviceID string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("security.devices"),
		logger.Op("Revoke"),
		logger.UserID(userID),
		logger.DeviceID(deviceID),
	)

	// Leer antes de borrar para poder describir el dispositivo en la alerta.
	var revoked *repository.TrustedDevice
	if devices, err := s.deps.Devices.ListLiveDevices(ctx, userID, s.deps.Now()); err == nil {
		for i := range devices {
			if devices[i].ID == deviceID {
				revoked = &devices[i]
				break
			}
		}
	}

	if err := s.deps.Devices.RevokeDevice(ctx, userID, deviceID); err != nil {
		if repository.IsNotFound(err) {
			// Incluye ids ajenos: un dispositivo de otro usuario no existe
			// desde la perspectiva de este.
			return ErrDeviceNotFound
		}
		log.Error("fallo la revocación", logger.Err(err))
		return ErrPersistence
	}

	metrics.DevicesRevoked.Inc()
	log.Info("dispositivo revocado")

	vars := email.AlertVars{Device: "dispositivo"}
	if revoked != nil {
		vars.Device = describeDevice(*revoked)
	}
	s.notifier.notify(ctx, userID, email.AlertDeviceRevoked, vars)
	return nil
}

func (s *deviceService) RevokeAll(ctx context.Context, userID string) (*dto.RevokeAllResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("security.devices"),
		logger.Op("RevokeAll"),
		logger.UserID(userID),
	)

	n, err := s.deps.Devices.RevokeAllDevices(ctx, userID, s.deps.Now())
	if err != nil {
		log.Error("fallo la revocación masiva", logger.Err(err))
		return nil, ErrPersistence
	}

	log.Info("dispositivos revocados", logger.Count(n))
	if n > 0 {
		metrics.DevicesRevoked.Add(float64(n))
		s.notifier.notify(ctx, userID, email.AlertDevicesCleared, email.AlertVars{Count: n})
	}
	return &dto.RevokeAllResponse{RevokedCount: n}, nil
}

// ─── Helpers ───

func deviceView(d repository.TrustedDevice) dto.DeviceView {
	return dto.DeviceView{
		ID:         d.ID,
		DeviceType: d.DeviceType,
		Browser:    d.Browser,
		OS:         d.OS,
		IPAddress:  d.IPAddress,
		City:       d.City,
		Country:    d.Country,
		CreatedAt:  d.CreatedAt.UTC().Format(time.RFC3339),
		LastUsed:   d.LastUsed.UTC().Format(time.RFC3339),
		ExpiresAt:  d.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func describeDevice(d repository.TrustedDevice) string {
	parts := []string{}
	if d.Browser != "" {
		parts = append(parts, d.Browser)
	}
	if d.OS != "" {
		parts = append(parts, d.OS)
	}
	if len(parts) == 0 {
		return d.DeviceType
	}
	return strings.Join(parts, " / ")
}

func describeLocation(d repository.TrustedDevice) string {
	switch {
	case d.City != "" && d.Country != "":
		return d.City + ", " + d.Country
	case d.Country != "":
		return d.Country
	default:
		return d.IPAddress
	}
}

func defaultStr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
