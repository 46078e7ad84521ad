package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	l := NewMemoryLimiter(3, time.Minute)
	l.Now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "2fa:verify:u1")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d debería pasar", i)
		}
		if res.Remaining != int64(3-i) {
			t.Fatalf("hit %d: remaining = %d", i, res.Remaining)
		}
	}

	res, _ := l.Allow(ctx, "2fa:verify:u1")
	if res.Allowed {
		t.Fatal("el cuarto hit debe bloquearse")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("RetryAfter = %v", res.RetryAfter)
	}

	// Otra clave no comparte la ventana.
	if res, _ := l.Allow(ctx, "2fa:verify:u2"); !res.Allowed {
		t.Fatal("otra clave no debe estar bloqueada")
	}

	// Ventana nueva: el contador arranca de cero.
	now = now.Add(time.Minute)
	if res, _ := l.Allow(ctx, "2fa:verify:u1"); !res.Allowed {
		t.Fatal("la ventana nueva debe permitir de nuevo")
	}
}
