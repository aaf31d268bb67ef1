// Package cli реализует команды plantit.
//
// # Commands
//
//   - run: выполнить run descriptor (YAML) с выбранными репортерами
//   - validate: проверить descriptor без выполнения
//   - terrain: token, user, list, stat, exists, create, download, upload,
//     share, unshare, tag, tags
//   - status: watch (RabbitMQ), history (PostgreSQL)
//
// Каждая команда создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей Env: замыкания для ленивой загрузки config.Config,
// Output и логгера после парсинга PersistentFlags.
//
// # Factories
//
// BuildReporter собирает репортер из PLANTIT_REPORTER (список через
// запятую даёт reporter.Multi), BuildStore выбирает Terrain или S3.
//
// # Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные идут в stdout, сообщения (Success/Error) в stderr:
//
//	plantit terrain list /iplant/home/alice --json | jq .
package cli
