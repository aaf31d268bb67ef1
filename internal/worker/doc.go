// Package worker выполняет отдельные стадии run.
//
// # Обзор
//
// Каждый тип стадии обслуживает свой Executor. Оркестратор выбирает
// executor через Registry по domain.StageKind и сам управляет статусом
// стадии; executor только делает работу и возвращает результат.
//
// # Ключевые компоненты
//
// ## Executor
//
//	type Executor interface {
//	    Execute(ctx context.Context, run *domain.Run, stage *domain.Stage) (*ExecutionResult, error)
//	}
//
// Реализации:
//   - CloneExecutor — git clone --depth N в директорию стадии
//   - InputExecutor — загрузка файла или директории из хранилища
//   - ContainerExecutor — рендеринг команд и запуск контейнера через runtime.Runtime
//   - OutputExecutor — выгрузка результатов в хранилище с фильтром
//
// ## Registry
//
//	registry := worker.NewRegistry(worker.Deps{
//	    Store:   terrain,
//	    Runtime: runtime.NewDockerRuntime("", logger),
//	    Clone:   worker.CloneConfig{Depth: 1},
//	})
//
// # Ошибки
//
// Любая ошибка Execute фатальна для run. ExecutionResult.Warning —
// не ошибка: стадия успешна, оркестратор отправляет статус WARN.
package worker
