// Package orchestrator выполняет run в текущем процессе.
//
// Orchestrator отвечает за:
//   - Стартовое сообщение и построение графа стадий
//   - Запуск готовых стадий с ограничением параллельности
//   - Fail-fast: после первой ошибки новые стадии не запускаются
//   - Предупреждения стадий (WARN) и итоговый статус: TaskComplete или один FAILED
//
// Стадии выполняются executor'ами из worker.Registry, статусы стадий
// меняет только Orchestrator через RunState.
package orchestrator
