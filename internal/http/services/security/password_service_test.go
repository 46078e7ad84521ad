package security

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
	"github.com/J4CIVY/bskmt-security/internal/security/password"
	"github.com/J4CIVY/bskmt-security/internal/store/memory"
)

var testArgon = password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

type passwordFixture struct {
	store   *memory.Store
	sender  *fakeSender
	now     time.Time
	service PasswordService
}

func newPasswordFixture(t *testing.T) *passwordFixture {
	t.Helper()
	f := &passwordFixture{
		store:  memory.New(),
		sender: &fakeSender{},
		now:    time.Unix(1700000000, 0).UTC(),
	}
	f.store.SeedUser(repository.User{ID: "u1", Email: "socio@bskmt.org", PasswordHash: mustHash(t, "contraseña-actual")})
	f.service = NewPasswordService(PasswordDeps{
		Users:  f.store,
		Prefs:  f.store,
		Sender: f.sender,
		Params: testArgon,
		Now:    func() time.Time { return f.now },
	})
	return f
}

func TestChangePassword_RevokesAllDevices(t *testing.T) {
	f := newPasswordFixture(t)
	ctx := context.Background()

	_, _, _ = f.store.TrustDevice(ctx, repository.TrustedDevice{ID: "d1", UserID: "u1", Fingerprint: "fp-1"}, f.now, 10)
	_, _, _ = f.store.TrustDevice(ctx, repository.TrustedDevice{ID: "d2", UserID: "u1", Fingerprint: "fp-2"}, f.now, 10)

	resp, err := f.service.ChangePassword(ctx, "u1", "contraseña-actual", "nueva-contraseña-larga")
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if !resp.Changed || resp.DevicesRevoked != 2 {
		t.Fatalf("respuesta inesperada: %+v", resp)
	}

	// Ningún cambio de contraseña deja dispositivos vivos.
	if devices, _ := f.store.ListLiveDevices(ctx, "u1", f.now); len(devices) != 0 {
		t.Fatal("no debería quedar ningún dispositivo confiable")
	}

	// El hash nuevo verifica; el viejo ya no.
	u, _ := f.store.GetUserByID(ctx, "u1")
	if !password.Verify("nueva-contraseña-larga", u.PasswordHash) {
		t.Fatal("la contraseña nueva debería verificar")
	}
	if password.Verify("contraseña-actual", u.PasswordHash) {
		t.Fatal("la contraseña vieja no debería verificar")
	}

	if subjects := f.sender.subjects(); len(subjects) != 1 || !strings.Contains(subjects[0], "Contraseña") {
		t.Fatalf("alerta de cambio no enviada: %v", subjects)
	}
}

func TestChangePassword_Rejections(t *testing.T) {
	f := newPasswordFixture(t)
	ctx := context.Background()

	// Contraseña nueva demasiado corta: se rechaza antes de verificar nada.
	if _, err := f.service.ChangePassword(ctx, "u1", "contraseña-actual", "corta"); err != ErrWeakPassword {
		t.Fatalf("contraseña corta: got %v", err)
	}

	// Contraseña actual incorrecta.
	if _, err := f.service.ChangePassword(ctx, "u1", "equivocada", "nueva-contraseña-larga"); err != ErrInvalidPassword {
		t.Fatalf("contraseña incorrecta: got %v", err)
	}

	// Usuario inexistente.
	if _, err := f.service.ChangePassword(ctx, "ghost", "x", "nueva-contraseña-larga"); err != ErrUserNotFound {
		t.Fatalf("usuario inexistente: got %v", err)
	}

	// Nada cambió: la contraseña original sigue vigente y no hubo alertas.
	u, _ := f.store.GetUserByID(ctx, "u1")
	if !password.Verify("contraseña-actual", u.PasswordHash) {
		t.Fatal("la contraseña original debería seguir vigente")
	}
	if len(f.sender.subjects()) != 0 {
		t.Fatal("un cambio rechazado no debe alertar")
	}
}

func TestAlerts_GetSet(t *testing.T) {
	store := memory.New()
	service := NewAlertsService(AlertsDeps{Prefs: store})
	ctx := context.Background()

	// Default habilitado.
	got, err := service.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.SecurityAlerts {
		t.Fatal("el default debe ser true")
	}

	// El primer Set reporta el default como previo.
	set, err := service.Set(ctx, "u1", false)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if set.SecurityAlerts || !set.Previous {
		t.Fatalf("respuesta inesperada: %+v", set)
	}

	got, _ = service.Get(ctx, "u1")
	if got.SecurityAlerts {
		t.Fatal("la preferencia debería haber quedado en false")
	}

	set, _ = service.Set(ctx, "u1", true)
	if !set.SecurityAlerts || set.Previous {
		t.Fatalf("respuesta inesperada: %+v", set)
	}
}
