// Package repo — доступ к PostgreSQL через pgx.
//
// StatusRepo ведёт журнал status_events: каждое обновление статуса,
// свойств задачи или task записывается отдельной строкой в порядке
// поступления (seq).
package repo
