// Package memory implementa los repositorios de seguridad en memoria.
// Se usa en desarrollo y tests; la semántica (expiración perezosa, dedup por
// fingerprint, serialización por usuario) es idéntica a la del adapter pg.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
)

type userState struct {
	mu sync.Mutex

	user      *repository.User
	twofactor *repository.TwoFactorProfile
	codes     []repository.BackupCode
	devices   []repository.TrustedDevice

	alertsSet bool
	alerts    bool
}

type Store struct {
	mu    sync.Mutex
	users map[string]*userState
}

func New() *Store {
	return &Store{users: make(map[string]*userState)}
}

// state retorna (creando si hace falta) el estado del usuario.
func (s *Store) state(userID string) *userState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[userID]
	if !ok {
		st = &userState{}
		s.users[userID] = st
	}
	return st
}

// SeedUser registra un usuario (solo para dev/tests).
func (s *Store) SeedUser(u repository.User) {
	st := s.state(u.ID)
	st.mu.Lock()
	defer st.mu.Unlock()
	cp := u
	st.user = &cp
}

// ─── TwoFactorRepository ───

func (s *Store) GetTwoFactor(_ context.Context, userID string) (*repository.TwoFactorProfile, error) {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.twofactor == nil {
		return nil, repository.ErrNotFound
	}
	cp := *st.twofactor
	return &cp, nil
}

func (s *Store) EnableTwoFactor(_ context.Context, userID, secretEnc string, codeHashes []string, at time.Time) error {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.twofactor = &repository.TwoFactorProfile{
		UserID:          userID,
		SecretEncrypted: secretEnc,
		ConfirmedAt:     at,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	st.codes = st.codes[:0]
	for _, h := range codeHashes {
		st.codes = append(st.codes, repository.BackupCode{
			UserID:    userID,
			CodeHash:  h,
			CreatedAt: at,
		})
	}
	return nil
}

func (s *Store) DisableTwoFactor(_ context.Context, userID string) error {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.twofactor = nil
	st.codes = nil
	return nil
}

func (s *Store) UpdateTwoFactorUsedAt(_ context.Context, userID string, at time.Time) error {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.twofactor == nil {
		return repository.ErrNotFound
	}
	t := at
	st.twofactor.LastUsedAt = &t
	st.twofactor.UpdatedAt = at
	return nil
}

func (s *Store) UseBackupCode(_ context.Context, userID, codeHash string, at time.Time) (bool, error) {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	for i := range st.codes {
		if st.codes[i].CodeHash == codeHash && st.codes[i].ConsumedAt == nil {
			t := at
			st.codes[i].ConsumedAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountBackupCodes(_ context.Context, userID string) (remaining, total int, err error) {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, c := range st.codes {
		total++
		if c.ConsumedAt == nil {
			remaining++
		}
	}
	return remaining, total, nil
}

// ─── TrustedDeviceRepository ───

func (s *Store) ListLiveDevices(_ context.Context, userID string, now time.Time) ([]repository.TrustedDevice, error) {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	var out []repository.TrustedDevice
	for _, d := range st.devices {
		if d.Live(now) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) TrustDevice(_ context.Context, d repository.TrustedDevice, now time.Time, maxDevices int) (*repository.TrustedDevice, bool, error) {
	st := s.state(d.UserID)
	st.mu.Lock()
	defer st.mu.Unlock()

	// Purga perezosa de las entradas vencidas del usuario.
	live := st.devices[:0]
	for _, existing := range st.devices {
		if existing.Live(now) {
			live = append(live, existing)
		}
	}
	st.devices = live

	for i := range st.devices {
		if st.devices[i].Fingerprint == d.Fingerprint {
			st.devices[i].LastUsed = now // ExpiresAt queda intacto
			cp := st.devices[i]
			return &cp, false, nil
		}
	}

	if maxDevices > 0 && len(st.devices) >= maxDevices {
		return nil, false, repository.ErrDeviceLimit
	}

	d.CreatedAt = now
	d.LastUsed = now
	d.ExpiresAt = now.Add(repository.TrustTTL)
	st.devices = append(st.devices, d)
	cp := d
	return &cp, true, nil
}

func (s *Store) RevokeDevice(_ context.Context, userID, deviceID string) error {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, d := range st.devices {
		if d.ID == deviceID {
			st.devices = append(st.devices[:i], st.devices[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Store) RevokeAllDevices(_ context.Context, userID string, now time.Time) (int, error) {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	revoked := 0
	for _, d := range st.devices {
		if d.Live(now) {
			revoked++
		}
	}
	st.devices = nil
	return revoked, nil
}

func (s *Store) PurgeExpiredDevices(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	states := make([]*userState, 0, len(s.users))
	for _, st := range s.users {
		states = append(states, st)
	}
	s.mu.Unlock()

	purged := 0
	for _, st := range states {
		st.mu.Lock()
		kept := st.devices[:0]
		for _, d := range st.devices {
			if d.Live(now) {
				kept = append(kept, d)
			} else {
				purged++
			}
		}
		st.devices = kept
		st.mu.Unlock()
	}
	return purged, nil
}

// ─── PreferenceRepository ───

func (s *Store) GetSecurityAlerts(_ context.Context, userID string) (bool, error) {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.alertsSet {
		return true, nil
	}
	return st.alerts, nil
}

func (s *Store) SetSecurityAlerts(_ context.Context, userID string, enabled bool) (bool, error) {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	previous := true
	if st.alertsSet {
		previous = st.alerts
	}
	st.alerts = enabled
	st.alertsSet = true
	return previous, nil
}

// ─── UserRepository ───

func (s *Store) GetUserByID(_ context.Context, userID string) (*repository.User, error) {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.user == nil {
		return nil, repository.ErrNotFound
	}
	cp := *st.user
	return &cp, nil
}

func (s *Store) UpdatePasswordAndRevokeDevices(_ context.Context, userID, newHash string, at time.Time) (int, error) {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.user == nil {
		return 0, repository.ErrNotFound
	}
	st.user.PasswordHash = newHash
	st.user.UpdatedAt = at
	revoked := 0
	for _, d := range st.devices {
		if d.Live(at) {
			revoked++
		}
	}
	st.devices = nil
	return revoked, nil
}
