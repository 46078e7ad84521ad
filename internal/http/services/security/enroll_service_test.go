package security

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/J4CIVY/bskmt-security/internal/cache"
	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
	"github.com/J4CIVY/bskmt-security/internal/security/password"
	"github.com/J4CIVY/bskmt-security/internal/security/secretbox"
	"github.com/J4CIVY/bskmt-security/internal/security/totp"
	"github.com/J4CIVY/bskmt-security/internal/store/memory"
)

func setTestKey(t *testing.T) {
	t.Helper()
	secretbox.UnsafeResetForTests()

	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	t.Setenv("SECURITY_MASTER_KEY", base64.StdEncoding.EncodeToString(raw))
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	h, err := password.Hash(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}, plain)
	if err != nil {
		t.Fatalf("password.Hash: %v", err)
	}
	return h
}

// wrongCode retorna un código de 6 dígitos que no verifica contra el secreto
// en el instante dado, considerando la ventana de tolerancia de un paso.
func wrongCode(secretRaw []byte, now time.Time) string {
	window := map[string]bool{
		totp.Code(secretRaw, now.Add(-30*time.Second)): true,
		totp.Code(secretRaw, now):                      true,
		totp.Code(secretRaw, now.Add(30*time.Second)):  true,
	}
	for _, c := range []string{"000000", "111111", "222222", "333333"} {
		if !window[c] {
			return c
		}
	}
	return "999999"
}

// fakeSender registra los envíos para inspección.
type fakeSender struct {
	mu   sync.Mutex
	sent []string // subjects
	fail bool
}

func (f *fakeSender) Send(to, subject, htmlBody, textBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, subject)
	return nil
}

func (f *fakeSender) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type enrollFixture struct {
	store   *memory.Store
	cache   cache.Client
	sender  *fakeSender
	now     time.Time
	service EnrollmentService
}

func newEnrollFixture(t *testing.T) *enrollFixture {
	t.Helper()
	setTestKey(t)

	f := &enrollFixture{
		store:  memory.New(),
		cache:  cache.NewMemory("", 0),
		sender: &fakeSender{},
		now:    time.Unix(1700000000, 0).UTC(),
	}
	f.store.SeedUser(repository.User{ID: "u1", Email: "socio@bskmt.org", PasswordHash: mustHash(t, "contraseña-actual")})
	f.service = NewEnrollmentService(EnrollmentDeps{
		TwoFactor: f.store,
		Users:     f.store,
		Prefs:     f.store,
		Cache:     f.cache,
		Sender:    f.sender,
		Issuer:    "BSK Motorcycle Team",
		Now:       func() time.Time { return f.now },
	})
	return f
}

// enrollToVerified recorre el flujo completo hasta 2FA habilitado.
func (f *enrollFixture) enrollToVerified(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	resp, err := f.service.BeginEnroll(ctx, "u1", "")
	if err != nil {
		t.Fatalf("BeginEnroll: %v", err)
	}
	if _, err := f.service.AckScan(ctx, "u1"); err != nil {
		t.Fatalf("AckScan: %v", err)
	}

	secretRaw, err := totp.DecodeSecret(resp.SecretBase32)
	if err != nil {
		t.Fatalf("DecodeSecret: %v", err)
	}
	vr, err := f.service.SubmitVerification(ctx, "u1", totp.Code(secretRaw, f.now))
	if err != nil {
		t.Fatalf("SubmitVerification: %v", err)
	}
	if !vr.Enabled || len(vr.BackupCodes) == 0 {
		t.Fatalf("respuesta de verificación inesperada: %+v", vr)
	}
	return vr.BackupCodes
}

func TestEnroll_FullFlow(t *testing.T) {
	f := newEnrollFixture(t)
	ctx := context.Background()

	resp, err := f.service.BeginEnroll(ctx, "u1", "")
	if err != nil {
		t.Fatalf("BeginEnroll: %v", err)
	}
	if resp.State != "awaiting_scan" {
		t.Fatalf("estado inicial %q", resp.State)
	}
	if !strings.Contains(resp.OTPAuthURL, "socio%40bskmt.org") && !strings.Contains(resp.OTPAuthURL, "socio@bskmt.org") {
		t.Fatalf("la URL debería llevar el email del usuario: %q", resp.OTPAuthURL)
	}
	if !strings.Contains(resp.OTPAuthURL, resp.SecretBase32) {
		t.Fatal("la URL debería llevar el secreto")
	}

	ack, err := f.service.AckScan(ctx, "u1")
	if err != nil {
		t.Fatalf("AckScan: %v", err)
	}
	if ack.State != "awaiting_verification" {
		t.Fatalf("estado tras ack %q", ack.State)
	}

	secretRaw, _ := totp.DecodeSecret(resp.SecretBase32)
	vr, err := f.service.SubmitVerification(ctx, "u1", totp.Code(secretRaw, f.now))
	if err != nil {
		t.Fatalf("SubmitVerification: %v", err)
	}
	if len(vr.BackupCodes) != 8 {
		t.Fatalf("códigos de respaldo = %d, want 8", len(vr.BackupCodes))
	}

	// La verdad persistida: el perfil existe y los hashes están guardados.
	if _, err := f.store.GetTwoFactor(ctx, "u1"); err != nil {
		t.Fatalf("el perfil debería existir: %v", err)
	}
	if remaining, total, _ := f.store.CountBackupCodes(ctx, "u1"); remaining != 8 || total != 8 {
		t.Fatalf("códigos = (%d,%d)", remaining, total)
	}

	// El pendiente se consumió; la descarga one-shot quedó armada.
	if _, err := f.service.AckScan(ctx, "u1"); err != ErrNoPendingEnroll {
		t.Fatalf("el pendiente debería haber desaparecido, got %v", err)
	}
	export, err := f.service.ExportBackupCodes(ctx, "u1")
	if err != nil {
		t.Fatalf("ExportBackupCodes: %v", err)
	}
	if got := strings.Split(export, "\n"); len(got) != 8 || got[0] != vr.BackupCodes[0] {
		t.Fatalf("exportación inconsistente: %q", export)
	}
	// One-shot: la segunda descarga ya no existe.
	if _, err := f.service.ExportBackupCodes(ctx, "u1"); err != ErrExportGone {
		t.Fatalf("esperaba ErrExportGone, got %v", err)
	}

	if subjects := f.sender.subjects(); len(subjects) != 1 || !strings.Contains(subjects[0], "activada") {
		t.Fatalf("alerta de activación no enviada: %v", subjects)
	}
}

func TestBeginEnroll_AlreadyEnrolled(t *testing.T) {
	f := newEnrollFixture(t)
	f.enrollToVerified(t)

	if _, err := f.service.BeginEnroll(context.Background(), "u1", ""); err != ErrAlreadyEnrolled {
		t.Fatalf("esperaba ErrAlreadyEnrolled, got %v", err)
	}
}

func TestBeginEnroll_ReissueInvalidatesPreviousSecret(t *testing.T) {
	f := newEnrollFixture(t)
	ctx := context.Background()

	first, _ := f.service.BeginEnroll(ctx, "u1", "")
	second, _ := f.service.BeginEnroll(ctx, "u1", "")
	if first.SecretBase32 == second.SecretBase32 {
		t.Fatal("cada enrolamiento debe emitir un secreto nuevo")
	}

	// El código del primer secreto ya no sirve: el pendiente fue pisado.
	_, _ = f.service.AckScan(ctx, "u1")
	oldRaw, _ := totp.DecodeSecret(first.SecretBase32)
	if _, err := f.service.SubmitVerification(ctx, "u1", totp.Code(oldRaw, f.now)); err != ErrVerificationFailed {
		t.Fatalf("el secreto viejo no debería verificar, got %v", err)
	}
}

func TestSubmitVerification_Errors(t *testing.T) {
	f := newEnrollFixture(t)
	ctx := context.Background()

	// Sin pendiente.
	if _, err := f.service.SubmitVerification(ctx, "u1", "123456"); err != ErrNoPendingEnroll {
		t.Fatalf("sin pendiente: got %v", err)
	}

	resp, _ := f.service.BeginEnroll(ctx, "u1", "")

	// Estado scan: verificar sin ack es error de secuencia.
	if _, err := f.service.SubmitVerification(ctx, "u1", "123456"); err != ErrWrongEnrollState {
		t.Fatalf("en scan: got %v", err)
	}
	_, _ = f.service.AckScan(ctx, "u1")

	// Entrada malformada: rechazo sin tocar el estado.
	for _, bad := range []string{"", "12345", "1234567", "12a456", "críptico"} {
		if _, err := f.service.SubmitVerification(ctx, "u1", bad); err != ErrInvalidCode {
			t.Fatalf("código %q: got %v", bad, err)
		}
	}

	// Código bien formado pero incorrecto: falla y el pendiente sobrevive.
	secretRaw, _ := totp.DecodeSecret(resp.SecretBase32)
	if _, err := f.service.SubmitVerification(ctx, "u1", wrongCode(secretRaw, f.now)); err != ErrVerificationFailed {
		t.Fatalf("código incorrecto: got %v", err)
	}
	if _, err := f.service.SubmitVerification(ctx, "u1", totp.Code(secretRaw, f.now)); err != nil {
		t.Fatalf("el reintento con código válido debería funcionar: %v", err)
	}
}

func TestCancelEnroll_Idempotent(t *testing.T) {
	f := newEnrollFixture(t)
	ctx := context.Background()

	if err := f.service.CancelEnroll(ctx, "u1"); err != nil {
		t.Fatalf("cancelar sin pendiente: %v", err)
	}

	_, _ = f.service.BeginEnroll(ctx, "u1", "")
	if err := f.service.CancelEnroll(ctx, "u1"); err != nil {
		t.Fatalf("CancelEnroll: %v", err)
	}
	if _, err := f.service.AckScan(ctx, "u1"); err != ErrNoPendingEnroll {
		t.Fatalf("el pendiente debería haberse borrado, got %v", err)
	}
	// Cancelar no toca el perfil persistido.
	if _, err := f.store.GetTwoFactor(ctx, "u1"); !repository.IsNotFound(err) {
		t.Fatal("cancelar no debe dejar 2FA habilitado")
	}
}

func TestRedeemBackupCode(t *testing.T) {
	f := newEnrollFixture(t)
	ctx := context.Background()

	// Sin 2FA habilitado.
	if _, err := f.service.RedeemBackupCode(ctx, "u1", "AAAAAAAA"); err != ErrNotEnrolled {
		t.Fatalf("sin 2FA: got %v", err)
	}

	codes := f.enrollToVerified(t)

	// Largo inválido.
	if _, err := f.service.RedeemBackupCode(ctx, "u1", "corto"); err != ErrInvalidCode {
		t.Fatalf("código corto: got %v", err)
	}

	// Canje válido, insensible a mayúsculas y espacios.
	rr, err := f.service.RedeemBackupCode(ctx, "u1", "  "+strings.ToLower(codes[0])+" ")
	if err != nil {
		t.Fatalf("RedeemBackupCode: %v", err)
	}
	if !rr.Redeemed || rr.Remaining != 7 {
		t.Fatalf("respuesta inesperada: %+v", rr)
	}

	// Re-canje del mismo código: consumido jamás vuelve.
	if _, err := f.service.RedeemBackupCode(ctx, "u1", codes[0]); err != ErrVerificationFailed {
		t.Fatalf("re-canje: got %v", err)
	}

	// Código inexistente bien formado.
	if _, err := f.service.RedeemBackupCode(ctx, "u1", "ZZZZZZZZ"); err != ErrVerificationFailed {
		t.Fatalf("código inexistente: got %v", err)
	}
}

func TestDisable_Flow(t *testing.T) {
	f := newEnrollFixture(t)
	ctx := context.Background()

	// Sin 2FA habilitado no hay nada que deshabilitar.
	if _, err := f.service.BeginDisable(ctx, "u1"); err != ErrNotEnrolled {
		t.Fatalf("BeginDisable sin 2FA: got %v", err)
	}

	f.enrollToVerified(t)

	// Confirmar sin ticket.
	if err := f.service.ConfirmDisable(ctx, "u1", "contraseña-actual"); err != ErrNoDisableTicket {
		t.Fatalf("sin ticket: got %v", err)
	}

	if _, err := f.service.BeginDisable(ctx, "u1"); err != nil {
		t.Fatalf("BeginDisable: %v", err)
	}

	// Contraseña incorrecta: el ticket sobrevive para reintentar.
	if err := f.service.ConfirmDisable(ctx, "u1", "equivocada"); err != ErrInvalidPassword {
		t.Fatalf("contraseña incorrecta: got %v", err)
	}
	if err := f.service.ConfirmDisable(ctx, "u1", "contraseña-actual"); err != nil {
		t.Fatalf("ConfirmDisable: %v", err)
	}

	// Perfil y códigos desaparecen juntos.
	if _, err := f.store.GetTwoFactor(ctx, "u1"); !repository.IsNotFound(err) {
		t.Fatal("el perfil debería haber desaparecido")
	}
	if _, total, _ := f.store.CountBackupCodes(ctx, "u1"); total != 0 {
		t.Fatal("los códigos deberían haber desaparecido")
	}

	// El ticket se consumió.
	if err := f.service.ConfirmDisable(ctx, "u1", "contraseña-actual"); err != ErrNoDisableTicket {
		t.Fatalf("el ticket debería haberse consumido, got %v", err)
	}

	subjects := f.sender.subjects()
	if len(subjects) != 2 || !strings.Contains(subjects[1], "desactivada") {
		t.Fatalf("alerta de desactivación no enviada: %v", subjects)
	}
}

func TestNotifier_RespectsPreferenceAndFailures(t *testing.T) {
	f := newEnrollFixture(t)
	ctx := context.Background()

	// Alertas apagadas: enrolar no envía nada.
	if _, err := f.store.SetSecurityAlerts(ctx, "u1", false); err != nil {
		t.Fatal(err)
	}
	f.enrollToVerified(t)
	if len(f.sender.subjects()) != 0 {
		t.Fatal("con alertas apagadas no debe enviarse email")
	}

	// Un SMTP caído jamás hace fallar la operación.
	_, _ = f.store.SetSecurityAlerts(ctx, "u1", true)
	f.sender.fail = true
	if _, err := f.service.BeginDisable(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := f.service.ConfirmDisable(ctx, "u1", "contraseña-actual"); err != nil {
		t.Fatalf("el fallo de envío no debe propagarse: %v", err)
	}
}
