// Package logger provee el logger Zap del engine con scoping por contexto.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada request lleva su logger "scoped" (request_id, user_id, ...)
//     sin crear un nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Los managers nunca loguean secretos: códigos OTP, tokens de reset y states
//     se loguean truncados con Redact().
//
// # Usage
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
// En services (con contexto):
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("otp"), logger.Op("Verify"))
//	log.Info("challenge verified", logger.Email(email))
package logger
