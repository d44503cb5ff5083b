// Package logger provee un logger estructurado (zap) como singleton.
//
// Uso típico:
//
//	logger.Init(logger.Config{Env: "prod", Level: "info", ServiceName: "schoolcore"})
//	defer logger.Sync()
//
//	log := logger.Named("tenantdb")
//	log.Info("pool ready", logger.TrustCode("demo"))
//
// Los middlewares HTTP inyectan un logger "scoped" en el contexto con
// request_id, trust y principal; los services lo recuperan con From(ctx).
package logger
