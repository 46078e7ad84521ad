// bskmt-security es el servicio de seguridad de cuentas del BSK Motorcycle
// Team: 2FA (TOTP + códigos de respaldo), dispositivos confiables,
// preferencia de alertas y cambio de contraseña con invalidación de
// dispositivos.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/J4CIVY/bskmt-security/internal/cache"
	"github.com/J4CIVY/bskmt-security/internal/config"
	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
	"github.com/J4CIVY/bskmt-security/internal/email"
	healthctrl "github.com/J4CIVY/bskmt-security/internal/http/controllers/health"
	secctrl "github.com/J4CIVY/bskmt-security/internal/http/controllers/security"
	"github.com/J4CIVY/bskmt-security/internal/http/router"
	secsvc "github.com/J4CIVY/bskmt-security/internal/http/services/security"
	"github.com/J4CIVY/bskmt-security/internal/metrics"
	"github.com/J4CIVY/bskmt-security/internal/observability/logger"
	"github.com/J4CIVY/bskmt-security/internal/rate"
	"github.com/J4CIVY/bskmt-security/internal/store/memory"
	"github.com/J4CIVY/bskmt-security/internal/store/pg"
	rdb "github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "ruta del config YAML")
	flag.Parse()

	// .env opcional: en producción las variables vienen del entorno.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logger todavía no inicializado.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "bskmt-security",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ─── Persistencia ───
	var (
		twoFactorRepo repository.TwoFactorRepository
		deviceRepo    repository.TrustedDeviceRepository
		prefRepo      repository.PreferenceRepository
		userRepo      repository.UserRepository
		storePinger   healthctrl.Pinger
	)
	switch cfg.Storage.Driver {
	case "postgres":
		st, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: config.Dur(cfg.Storage.Postgres.ConnMaxLifetime, 0),
		})
		if err != nil {
			log.Fatal("no se pudo conectar a postgres", logger.Err(err))
		}
		defer st.Close()
		twoFactorRepo, deviceRepo, prefRepo, userRepo = st, st, st, st
		storePinger = st
	default:
		ms := memory.New()
		twoFactorRepo, deviceRepo, prefRepo, userRepo = ms, ms, ms, ms
		log.Warn("storage driver memory: solo para desarrollo")
	}

	// ─── Cache (estado transitorio 2FA) ───
	cacheClient, err := cache.New(cache.Config{
		Driver:     cfg.Cache.Driver,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: config.Dur(cfg.Cache.Memory.DefaultTTL, 0),
	})
	if err != nil {
		log.Fatal("no se pudo inicializar el cache", logger.Err(err))
	}
	defer func() { _ = cacheClient.Close() }()

	// ─── Rate limiters ───
	var verifyLimiter, trustLimiter rate.Limiter
	if !cfg.Rate.Disabled {
		verifyWindow := config.Dur(cfg.Rate.Verify.Window, 0)
		trustWindow := config.Dur(cfg.Rate.Trust.Window, 0)
		if raw, ok := cacheClient.(interface{ Raw() *rdb.Client }); ok {
			verifyLimiter = rate.NewRedisLimiter(raw.Raw(), "rl:", cfg.Rate.Verify.Limit, verifyWindow)
			trustLimiter = rate.NewRedisLimiter(raw.Raw(), "rl:", cfg.Rate.Trust.Limit, trustWindow)
		} else {
			verifyLimiter = rate.NewMemoryLimiter(cfg.Rate.Verify.Limit, verifyWindow)
			trustLimiter = rate.NewMemoryLimiter(cfg.Rate.Trust.Limit, trustWindow)
		}
	}

	// ─── Email de alertas ───
	var sender email.Sender
	if cfg.SMTP.Host != "" {
		sender = email.NewSMTPSender(email.SMTPConfig{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			Username:           cfg.SMTP.Username,
			Password:           cfg.SMTP.Password,
			From:               cfg.SMTP.From,
			TLSMode:            cfg.SMTP.TLS,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		})
	} else {
		log.Warn("SMTP sin configurar: las alertas de seguridad no se enviarán")
	}

	if err := metrics.Register(nil); err != nil {
		log.Fatal("no se pudieron registrar las métricas", logger.Err(err))
	}

	// ─── Services + controllers + router ───
	services := secsvc.Services{
		Enrollment: secsvc.NewEnrollmentService(secsvc.EnrollmentDeps{
			TwoFactor:   twoFactorRepo,
			Users:       userRepo,
			Prefs:       prefRepo,
			Cache:       cacheClient,
			Sender:      sender,
			Issuer:      cfg.TwoFactor.Issuer,
			WindowSteps: cfg.TwoFactor.Window,
			PendingTTL:  config.Dur(cfg.TwoFactor.PendingTTL, 0),
			DisableTTL:  config.Dur(cfg.TwoFactor.DisableTTL, 0),
			ExportTTL:   config.Dur(cfg.TwoFactor.ExportTTL, 0),
		}),
		Devices: secsvc.NewDeviceService(secsvc.DeviceDeps{
			Devices:    deviceRepo,
			Users:      userRepo,
			Prefs:      prefRepo,
			Sender:     sender,
			MaxDevices: cfg.Devices.Max,
		}),
		Alerts: secsvc.NewAlertsService(secsvc.AlertsDeps{Prefs: prefRepo}),
		Password: secsvc.NewPasswordService(secsvc.PasswordDeps{
			Users:  userRepo,
			Prefs:  prefRepo,
			Sender: sender,
		}),
	}

	handler := router.New(router.Deps{
		Security:      secctrl.NewControllers(services),
		Health:        healthctrl.NewHealthController(storePinger, cacheClient),
		JWTSecret:     cfg.Auth.JWTSecret,
		JWTIssuer:     cfg.Auth.Issuer,
		VerifyLimiter: verifyLimiter,
		TrustLimiter:  trustLimiter,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  config.Dur(cfg.Server.ReadTimeout, 0),
		WriteTimeout: config.Dur(cfg.Server.WriteTimeout, 0),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("servidor escuchando",
			logger.String("addr", cfg.Server.Addr),
			logger.String("storage", cfg.Storage.Driver),
			logger.String("cache", cfg.Cache.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("apagando servidor")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("servidor finalizó con error", logger.Err(err))
	}
	log.Info("servidor detenido")
}
