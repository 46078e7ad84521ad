package security

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
	"github.com/J4CIVY/bskmt-security/internal/store/memory"
)

type deviceFixture struct {
	store   *memory.Store
	sender  *fakeSender
	now     time.Time
	service DeviceService
}

func newDeviceFixture(t *testing.T, maxDevices int) *deviceFixture {
	t.Helper()
	f := &deviceFixture{
		store:  memory.New(),
		sender: &fakeSender{},
		now:    time.Unix(1700000000, 0).UTC(),
	}
	f.store.SeedUser(repository.User{ID: "u1", Email: "socio@bskmt.org"})
	f.service = NewDeviceService(DeviceDeps{
		Devices:    f.store,
		Users:      f.store,
		Prefs:      f.store,
		Sender:     f.sender,
		MaxDevices: maxDevices,
		Now:        func() time.Time { return f.now },
	})
	return f
}

func firefoxLinux(ip string) DeviceContext {
	return DeviceContext{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Gecko/20100101 Firefox/128.0",
		IP:        ip,
		Browser:   "Firefox",
		OS:        "Linux",
		City:      "Bogotá",
		Country:   "CO",
	}
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(firefoxLinux("10.0.0.1"))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("la huella debe ser sha256 hex, len=%d", len(a))
	}

	// Determinística para el mismo contexto.
	b, _ := Fingerprint(firefoxLinux("10.0.0.1"))
	if a != b {
		t.Fatal("mismo contexto debe dar la misma huella")
	}

	// Distinta IP, distinta huella.
	c, _ := Fingerprint(firefoxLinux("10.0.0.2"))
	if a == c {
		t.Fatal("distinta IP debe dar distinta huella")
	}

	// Sin user-agent o sin IP no hay huella.
	if _, err := Fingerprint(DeviceContext{IP: "10.0.0.1"}); err == nil {
		t.Fatal("sin user-agent debería fallar")
	}
	if _, err := Fingerprint(DeviceContext{UserAgent: "curl/8.0"}); err == nil {
		t.Fatal("sin IP debería fallar")
	}
}

func TestTrust_CreateAndDedup(t *testing.T) {
	f := newDeviceFixture(t, 10)
	ctx := context.Background()

	first, err := f.service.Trust(ctx, "u1", firefoxLinux("10.0.0.1"))
	if err != nil {
		t.Fatalf("Trust: %v", err)
	}
	if !first.Created {
		t.Fatal("el primer trust debe crear la entrada")
	}
	if first.Device.ID == "" {
		t.Fatal("la entrada debe tener id asignado")
	}

	// Mismo contexto: refresh, no duplicado, sin alerta nueva.
	f.now = f.now.Add(time.Hour)
	again, err := f.service.Trust(ctx, "u1", firefoxLinux("10.0.0.1"))
	if err != nil {
		t.Fatalf("re-Trust: %v", err)
	}
	if again.Created {
		t.Fatal("el mismo dispositivo no debe crear entrada nueva")
	}
	if again.Device.ID != first.Device.ID {
		t.Fatal("el dedup debe retornar la entrada existente")
	}
	if again.Device.ExpiresAt != first.Device.ExpiresAt {
		t.Fatal("el refresh no debe extender la expiración")
	}

	list, _ := f.service.List(ctx, "u1")
	if list.Count != 1 {
		t.Fatalf("dispositivos = %d, want 1", list.Count)
	}

	// Una sola alerta: la del alta.
	if subjects := f.sender.subjects(); len(subjects) != 1 || !strings.Contains(subjects[0], "Nuevo dispositivo") {
		t.Fatalf("alertas enviadas: %v", subjects)
	}
}

func TestTrust_LimitAndContext(t *testing.T) {
	f := newDeviceFixture(t, 2)
	ctx := context.Background()

	if _, err := f.service.Trust(ctx, "u1", firefoxLinux("10.0.0.1")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.Trust(ctx, "u1", firefoxLinux("10.0.0.2")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.Trust(ctx, "u1", firefoxLinux("10.0.0.3")); err != ErrDeviceLimit {
		t.Fatalf("esperaba ErrDeviceLimit, got %v", err)
	}

	// El tope no afecta re-trust de un dispositivo ya registrado.
	if _, err := f.service.Trust(ctx, "u1", firefoxLinux("10.0.0.1")); err != nil {
		t.Fatalf("re-trust dentro del tope: %v", err)
	}

	// Contexto insuficiente.
	if _, err := f.service.Trust(ctx, "u1", DeviceContext{}); err != ErrDeviceContext {
		t.Fatalf("esperaba ErrDeviceContext, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	f := newDeviceFixture(t, 10)
	ctx := context.Background()

	created, _ := f.service.Trust(ctx, "u1", firefoxLinux("10.0.0.1"))

	if err := f.service.Revoke(ctx, "u1", "no-existe"); err != ErrDeviceNotFound {
		t.Fatalf("id inexistente: got %v", err)
	}
	// Un id ajeno es indistinguible de uno inexistente.
	if err := f.service.Revoke(ctx, "u2", created.Device.ID); err != ErrDeviceNotFound {
		t.Fatalf("id ajeno: got %v", err)
	}

	if err := f.service.Revoke(ctx, "u1", created.Device.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	list, _ := f.service.List(ctx, "u1")
	if list.Count != 0 {
		t.Fatal("el dispositivo debería haber desaparecido")
	}

	// Alta + revocación con descripción del dispositivo.
	subjects := f.sender.subjects()
	if len(subjects) != 2 || !strings.Contains(subjects[1], "revocado") {
		t.Fatalf("alertas: %v", subjects)
	}
}

func TestRevokeAll(t *testing.T) {
	f := newDeviceFixture(t, 10)
	ctx := context.Background()

	// Sin dispositivos: cero revocados, sin alerta.
	resp, err := f.service.RevokeAll(ctx, "u1")
	if err != nil {
		t.Fatalf("RevokeAll vacío: %v", err)
	}
	if resp.RevokedCount != 0 {
		t.Fatalf("revocados = %d, want 0", resp.RevokedCount)
	}
	if len(f.sender.subjects()) != 0 {
		t.Fatal("revocar cero dispositivos no debe alertar")
	}

	_, _ = f.service.Trust(ctx, "u1", firefoxLinux("10.0.0.1"))
	_, _ = f.service.Trust(ctx, "u1", firefoxLinux("10.0.0.2"))

	resp, err = f.service.RevokeAll(ctx, "u1")
	if err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if resp.RevokedCount != 2 {
		t.Fatalf("revocados = %d, want 2", resp.RevokedCount)
	}
	list, _ := f.service.List(ctx, "u1")
	if list.Count != 0 {
		t.Fatal("no debería quedar ningún dispositivo")
	}
}

func TestList_ViewDoesNotExposeFingerprint(t *testing.T) {
	f := newDeviceFixture(t, 10)
	ctx := context.Background()

	created, _ := f.service.Trust(ctx, "u1", firefoxLinux("10.0.0.1"))
	fp, _ := Fingerprint(firefoxLinux("10.0.0.1"))

	// La vista lleva timestamps RFC3339 y jamás la huella.
	v := created.Device
	if _, err := time.Parse(time.RFC3339, v.ExpiresAt); err != nil {
		t.Fatalf("expires_at no es RFC3339: %q", v.ExpiresAt)
	}
	for _, field := range []string{v.ID, v.Browser, v.OS, v.IPAddress, v.City, v.Country} {
		if field == fp {
			t.Fatal("la huella no debe aparecer en la vista")
		}
	}
}
