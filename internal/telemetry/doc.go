// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через zap
//   - metrics.go — Prometheus метрики стадий, run'ов, статусов и хранилища
//
// Метрики экспортируются на /metrics, если задан PLANTIT_METRICS_ADDR.
package telemetry
