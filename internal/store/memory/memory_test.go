package memory

import (
	"context"
	"testing"
	"time"

	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
)

var ctx = context.Background()

func device(userID, id, fp string) repository.TrustedDevice {
	return repository.TrustedDevice{
		ID:          id,
		UserID:      userID,
		Fingerprint: fp,
		DeviceType:  "desktop",
		Browser:     "Firefox",
		OS:          "Linux",
		IPAddress:   "10.0.0.1",
	}
}

func TestTwoFactor_EnableDisableInvariant(t *testing.T) {
	s := New()
	now := time.Now().UTC()

	// Sin perfil: ErrNotFound y cero códigos.
	if _, err := s.GetTwoFactor(ctx, "u1"); !repository.IsNotFound(err) {
		t.Fatalf("esperaba ErrNotFound, got %v", err)
	}
	if _, total, _ := s.CountBackupCodes(ctx, "u1"); total != 0 {
		t.Fatalf("sin perfil no debe haber códigos, got %d", total)
	}

	// Habilitar: perfil + códigos aparecen juntos.
	hashes := []string{"h1", "h2", "h3"}
	if err := s.EnableTwoFactor(ctx, "u1", "enc-secret", hashes, now); err != nil {
		t.Fatalf("EnableTwoFactor: %v", err)
	}
	p, err := s.GetTwoFactor(ctx, "u1")
	if err != nil {
		t.Fatalf("GetTwoFactor: %v", err)
	}
	if p.SecretEncrypted != "enc-secret" {
		t.Fatalf("secreto %q", p.SecretEncrypted)
	}
	if remaining, total, _ := s.CountBackupCodes(ctx, "u1"); remaining != 3 || total != 3 {
		t.Fatalf("códigos = (%d,%d), want (3,3)", remaining, total)
	}

	// Re-habilitar reemplaza los códigos: nunca se reutilizan entre enrolamientos.
	if err := s.EnableTwoFactor(ctx, "u1", "enc-secret-2", []string{"x1"}, now); err != nil {
		t.Fatalf("re-EnableTwoFactor: %v", err)
	}
	if used, _ := s.UseBackupCode(ctx, "u1", "h1", now); used {
		t.Fatal("un código del enrolamiento anterior no debe servir")
	}

	// Deshabilitar: perfil y códigos desaparecen juntos.
	if err := s.DisableTwoFactor(ctx, "u1"); err != nil {
		t.Fatalf("DisableTwoFactor: %v", err)
	}
	if _, err := s.GetTwoFactor(ctx, "u1"); !repository.IsNotFound(err) {
		t.Fatal("el perfil debería haber desaparecido")
	}
	if _, total, _ := s.CountBackupCodes(ctx, "u1"); total != 0 {
		t.Fatal("los códigos deberían haber desaparecido con el perfil")
	}
}

func TestUseBackupCode_SingleUse(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	_ = s.EnableTwoFactor(ctx, "u1", "enc", []string{"h1", "h2"}, now)

	used, err := s.UseBackupCode(ctx, "u1", "h1", now)
	if err != nil || !used {
		t.Fatalf("primer uso: used=%v err=%v", used, err)
	}
	// Consumido jamás vuelve a estar disponible.
	if used, _ := s.UseBackupCode(ctx, "u1", "h1", now); used {
		t.Fatal("segundo uso del mismo código debería fallar")
	}
	if remaining, total, _ := s.CountBackupCodes(ctx, "u1"); remaining != 1 || total != 2 {
		t.Fatalf("códigos = (%d,%d), want (1,2)", remaining, total)
	}
}

func TestTrustDevice_DedupAndNoSlidingExpiry(t *testing.T) {
	s := New()
	now := time.Now().UTC()

	first, created, err := s.TrustDevice(ctx, device("u1", "d1", "fp-a"), now, 10)
	if err != nil || !created {
		t.Fatalf("primer trust: created=%v err=%v", created, err)
	}
	wantExp := now.Add(repository.TrustTTL)
	if !first.ExpiresAt.Equal(wantExp) {
		t.Fatalf("expiración %v, want %v", first.ExpiresAt, wantExp)
	}

	// Mismo fingerprint una hora después: refresh de last_used, expiración intacta.
	later := now.Add(time.Hour)
	dup, created, err := s.TrustDevice(ctx, device("u1", "d2", "fp-a"), later, 10)
	if err != nil || created {
		t.Fatalf("dup: created=%v err=%v", created, err)
	}
	if dup.ID != "d1" {
		t.Fatalf("el dup debe refrescar la entrada existente, got id %q", dup.ID)
	}
	if !dup.LastUsed.Equal(later) {
		t.Fatal("last_used debería refrescarse")
	}
	if !dup.ExpiresAt.Equal(wantExp) {
		t.Fatal("expires_at no debe extenderse por uso")
	}

	devices, _ := s.ListLiveDevices(ctx, "u1", later)
	if len(devices) != 1 {
		t.Fatalf("debería haber una sola entrada, got %d", len(devices))
	}
}

func TestTrustDevice_LimitAndExpiredSlotReuse(t *testing.T) {
	s := New()
	now := time.Now().UTC()

	if _, _, err := s.TrustDevice(ctx, device("u1", "d1", "fp-1"), now, 2); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.TrustDevice(ctx, device("u1", "d2", "fp-2"), now, 2); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.TrustDevice(ctx, device("u1", "d3", "fp-3"), now, 2); err != repository.ErrDeviceLimit {
		t.Fatalf("esperaba ErrDeviceLimit, got %v", err)
	}

	// Pasada la expiración, las entradas viejas liberan el cupo.
	afterTTL := now.Add(repository.TrustTTL + time.Minute)
	if _, created, err := s.TrustDevice(ctx, device("u1", "d3", "fp-3"), afterTTL, 2); err != nil || !created {
		t.Fatalf("con entradas vencidas debería haber cupo: created=%v err=%v", created, err)
	}
}

func TestListLiveDevices_LazyExpiry(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	_, _, _ = s.TrustDevice(ctx, device("u1", "d1", "fp-1"), now, 10)

	if devices, _ := s.ListLiveDevices(ctx, "u1", now.Add(time.Hour)); len(devices) != 1 {
		t.Fatal("el dispositivo debería estar vigente")
	}
	// Justo después de expirar se trata como ausente aunque siga almacenado.
	if devices, _ := s.ListLiveDevices(ctx, "u1", now.Add(repository.TrustTTL)); len(devices) != 0 {
		t.Fatal("el dispositivo expirado no debe listarse")
	}
}

func TestRevokeDevice_ScopedByUser(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	_, _, _ = s.TrustDevice(ctx, device("u1", "d1", "fp-1"), now, 10)

	// Id ajeno: indistinguible de inexistente.
	if err := s.RevokeDevice(ctx, "u2", "d1"); !repository.IsNotFound(err) {
		t.Fatalf("revocar un id ajeno debe dar ErrNotFound, got %v", err)
	}
	if err := s.RevokeDevice(ctx, "u1", "d1"); err != nil {
		t.Fatalf("RevokeDevice: %v", err)
	}
	// Re-revocar: la eliminación es terminal.
	if err := s.RevokeDevice(ctx, "u1", "d1"); !repository.IsNotFound(err) {
		t.Fatal("re-revocar debe dar ErrNotFound")
	}
}

func TestRevokeAllDevices_CountsOnlyLive(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	_, _, _ = s.TrustDevice(ctx, device("u1", "d1", "fp-1"), now, 10)
	_, _, _ = s.TrustDevice(ctx, device("u1", "d2", "fp-2"), now, 10)

	later := now.Add(repository.TrustTTL + time.Minute)
	_, _, _ = s.TrustDevice(ctx, device("u1", "d3", "fp-3"), later, 10)

	// d1 y d2 ya vencieron; solo d3 cuenta como revocado.
	n, err := s.RevokeAllDevices(ctx, "u1", later)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("revocados = %d, want 1", n)
	}
	if devices, _ := s.ListLiveDevices(ctx, "u1", later); len(devices) != 0 {
		t.Fatal("no debería quedar ningún dispositivo")
	}
}

func TestPurgeExpiredDevices(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	_, _, _ = s.TrustDevice(ctx, device("u1", "d1", "fp-1"), now, 10)
	_, _, _ = s.TrustDevice(ctx, device("u2", "d2", "fp-2"), now, 10)

	n, err := s.PurgeExpiredDevices(ctx, now.Add(repository.TrustTTL+time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("purgados = %d, want 2", n)
	}
}

func TestSecurityAlerts_DefaultAndPrevious(t *testing.T) {
	s := New()

	// Default: habilitado.
	if enabled, _ := s.GetSecurityAlerts(ctx, "u1"); !enabled {
		t.Fatal("el default debe ser true")
	}

	// El primer Set reporta el default como previo.
	prev, err := s.SetSecurityAlerts(ctx, "u1", false)
	if err != nil {
		t.Fatal(err)
	}
	if !prev {
		t.Fatal("previous del primer Set debe ser true (default)")
	}
	if enabled, _ := s.GetSecurityAlerts(ctx, "u1"); enabled {
		t.Fatal("la preferencia debería haber quedado en false")
	}

	prev, _ = s.SetSecurityAlerts(ctx, "u1", true)
	if prev {
		t.Fatal("previous debería ser false")
	}
}

func TestUpdatePasswordAndRevokeDevices_Atomic(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	s.SeedUser(repository.User{ID: "u1", Email: "socio@bskmt.org", PasswordHash: "old"})
	_, _, _ = s.TrustDevice(ctx, device("u1", "d1", "fp-1"), now, 10)
	_, _, _ = s.TrustDevice(ctx, device("u1", "d2", "fp-2"), now, 10)

	revoked, err := s.UpdatePasswordAndRevokeDevices(ctx, "u1", "new-hash", now)
	if err != nil {
		t.Fatal(err)
	}
	if revoked != 2 {
		t.Fatalf("revocados = %d, want 2", revoked)
	}
	u, _ := s.GetUserByID(ctx, "u1")
	if u.PasswordHash != "new-hash" {
		t.Fatal("el hash no se actualizó")
	}
	if devices, _ := s.ListLiveDevices(ctx, "u1", now); len(devices) != 0 {
		t.Fatal("ningún cambio de contraseña puede dejar dispositivos vivos")
	}

	// Usuario inexistente.
	if _, err := s.UpdatePasswordAndRevokeDevices(ctx, "ghost", "h", now); !repository.IsNotFound(err) {
		t.Fatalf("esperaba ErrNotFound, got %v", err)
	}
}
