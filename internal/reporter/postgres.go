package reporter

import (
	"context"
	"fmt"
	"sync"

	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/repo"
	"github.com/shaiso/Plantit/internal/telemetry"
)

// Journal — хранилище записей статуса (repo.StatusRepo).
type Journal interface {
	Append(ctx context.Context, rec *repo.StatusRecord) error
}

// Postgres дописывает каждое обновление в таблицу status_events.
type Postgres struct {
	mu      sync.Mutex
	journal Journal
	jobID   string
}

// NewPostgres создаёт журналирующий репортер.
func NewPostgres(journal Journal, jobID string) (*Postgres, error) {
	if jobID == "" {
		return nil, ErrMissingJobID
	}
	return &Postgres{journal: journal, jobID: jobID}, nil
}

func (p *Postgres) UpdateStatus(ctx context.Context, state domain.StatusState, description string) error {
	if !state.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidState, state)
	}
	event := domain.NewStatusEvent(p.jobID, state, description)
	s := int(state)
	return p.append(ctx, &repo.StatusRecord{
		ID:          event.ID,
		JobID:       p.jobID,
		Kind:        repo.RecordStatus,
		State:       &s,
		Description: event.Description,
		CreatedAt:   event.Timestamp,
	})
}

func (p *Postgres) UpdateJob(ctx context.Context, props map[string]any) error {
	return p.append(ctx, &repo.StatusRecord{JobID: p.jobID, Kind: repo.RecordJob, Props: props})
}

func (p *Postgres) UpdateTask(ctx context.Context, taskID string, props map[string]any) error {
	return p.append(ctx, &repo.StatusRecord{JobID: p.jobID, Kind: repo.RecordTask, TaskID: taskID, Props: props})
}

func (p *Postgres) TaskComplete(ctx context.Context, taskID string) error {
	return p.UpdateTask(ctx, taskID, completeProps())
}

func (p *Postgres) append(ctx context.Context, rec *repo.StatusRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.journal.Append(ctx, rec)
	telemetry.ObserveStatusUpdate("postgres", err)
	return err
}
