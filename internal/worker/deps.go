package worker

import (
	"github.com/shaiso/Plantit/internal/runtime"
	"github.com/shaiso/Plantit/internal/store"
)

// Deps — зависимости executor'ов.
type Deps struct {
	// Store — удалённое хранилище для stage_input и stage_output.
	// Может быть nil, если run не использует input и output.
	Store store.Transferer

	// Runtime — запуск контейнеров.
	Runtime runtime.Runtime

	Clone CloneConfig
}
