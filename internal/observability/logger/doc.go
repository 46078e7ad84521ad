// Package logger provee un logger Zap singleton con scoping por contexto.
//
// # Uso
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.App.Env,   // "dev" o "prod"
//	    Level: cfg.App.LogLevel,
//	})
//	defer logger.Sync()
//
// En controllers/services (con contexto):
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("devices.trust"))
//	log.Info("device trusted", logger.UserID(userID), logger.DeviceID(id))
//
// Sin contexto (fallback al singleton):
//
//	logger.L().Info("server started")
package logger
