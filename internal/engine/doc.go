// Package engine содержит построение графа стадий run.
//
// Включает:
//   - parser.go   — загрузка run descriptor из YAML и валидация
//   - graph.go    — арена стадий, топологическая сортировка, готовые стадии
//   - builder.go  — Pipeline Builder: run descriptor → граф
//   - template.go — рендеринг команд контейнера ({{ .Input }}, {{ .Params.x }})
//
// Engine отвечает за структуру run и порядок стадий; выполнение —
// в пакете orchestrator.
package engine
