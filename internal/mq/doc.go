// Package mq — инфраструктура RabbitMQ для канала статусов.
//
// Структура:
//   - connection.go — соединение с reconnect и graceful shutdown
//   - topology.go   — обменник plantit.status и очередь plantit.status.events
//   - publisher.go  — публикация обновлений status/job/task
//   - consumer.go   — чтение обновлений (plantit status watch)
//
// Типы сообщений:
//   - status.updated — status_set (state, date, description)
//   - job.updated    — произвольные свойства задачи
//   - task.updated   — task_set (pk и свойства)
package mq
