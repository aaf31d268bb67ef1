// Package runtime запускает контейнеры стадий run_container.
//
// DockerRuntime вызывает docker CLI (docker run --rm), LocalRuntime
// выполняет те же команды через sh на хосте. Команды склеиваются через
// "&&", вывод собирается целиком, ненулевой код выхода — *ExitError.
package runtime
