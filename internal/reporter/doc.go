// Package reporter передаёт супервизору статус run.
//
// Бэкенды:
//   - Console  — строки в writer и лог, без сети
//   - REST     — PATCH <base>/jobs/<job_id>/ с status_set или task_set
//   - AMQP     — те же payload'ы в обменник plantit.status
//   - Postgres — журнал status_events
//   - Multi    — рассылка нескольким бэкендам по порядку
//
// Описание статуса длиннее 150 символов обрезается до последних 150
// с маркером "..." (domain.TruncateDescription) во всех бэкендах.
package reporter
