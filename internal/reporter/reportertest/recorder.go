// Package reportertest — записывающий Reporter для тестов.
package reportertest

import (
	"context"
	"maps"
	"sync"

	"github.com/shaiso/Plantit/internal/domain"
)

// Call — один вызов репортера.
type Call struct {
	// Method — "status", "job", "task" или "complete".
	Method      string
	State       domain.StatusState
	Description string
	TaskID      string
	Props       map[string]any
}

// Recorder запоминает вызовы. FailOn заставляет вернуть Err на методе.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	FailOn string
	Err    error
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailOn != "" && r.FailOn == c.Method {
		return r.Err
	}
	r.calls = append(r.calls, c)
	return nil
}

func (r *Recorder) UpdateStatus(_ context.Context, state domain.StatusState, description string) error {
	return r.record(Call{Method: "status", State: state, Description: domain.TruncateDescription(description)})
}

func (r *Recorder) UpdateJob(_ context.Context, props map[string]any) error {
	return r.record(Call{Method: "job", Props: maps.Clone(props)})
}

func (r *Recorder) UpdateTask(_ context.Context, taskID string, props map[string]any) error {
	return r.record(Call{Method: "task", TaskID: taskID, Props: maps.Clone(props)})
}

func (r *Recorder) TaskComplete(_ context.Context, taskID string) error {
	return r.record(Call{Method: "complete", TaskID: taskID})
}

// Calls возвращает копию всех вызовов.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Statuses возвращает только вызовы UpdateStatus.
func (r *Recorder) Statuses() []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Method == "status" {
			out = append(out, c)
		}
	}
	return out
}

// CountState считает статусы с данным кодом.
func (r *Recorder) CountState(state domain.StatusState) int {
	n := 0
	for _, c := range r.Statuses() {
		if c.State == state {
			n++
		}
	}
	return n
}
