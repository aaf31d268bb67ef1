package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordKind — тип записи журнала.
type RecordKind string

const (
	RecordStatus RecordKind = "status"
	RecordJob    RecordKind = "job"
	RecordTask   RecordKind = "task"
)

// StatusRecord — одна строка журнала status_events.
type StatusRecord struct {
	ID    uuid.UUID
	JobID string
	Kind  RecordKind

	// State и Description заполнены только для RecordStatus.
	State       *int
	Description string

	// TaskID заполнен только для RecordTask.
	TaskID string

	Props     map[string]any
	CreatedAt time.Time
}

// Validate проверяет обязательные поля.
func (r *StatusRecord) Validate() error {
	if r.JobID == "" {
		return fmt.Errorf("%w: job id is required", ErrInvalidRecord)
	}
	switch r.Kind {
	case RecordStatus:
		if r.State == nil {
			return fmt.Errorf("%w: status record without state", ErrInvalidRecord)
		}
	case RecordJob:
	case RecordTask:
		if r.TaskID == "" {
			return fmt.Errorf("%w: task record without task id", ErrInvalidRecord)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, r.Kind)
	}
	return nil
}

// Schema — DDL журнала; выполняется EnsureSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS status_events (
	seq         BIGSERIAL PRIMARY KEY,
	id          UUID        NOT NULL UNIQUE,
	job_id      TEXT        NOT NULL,
	kind        TEXT        NOT NULL,
	state       SMALLINT,
	description TEXT,
	task_id     TEXT,
	props       JSONB,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS status_events_job_idx ON status_events (job_id, seq);
`

// StatusRepo — журнал обновлений статуса.
type StatusRepo struct {
	pool *pgxpool.Pool
}

// NewStatusRepo создаёт StatusRepo.
func NewStatusRepo(pool *pgxpool.Pool) *StatusRepo {
	return &StatusRepo{pool: pool}
}

// EnsureSchema создаёт таблицу, если её нет.
func (r *StatusRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure status_events schema: %w", err)
	}
	return nil
}

// Append добавляет запись. Пустые ID и CreatedAt заполняются.
func (r *StatusRepo) Append(ctx context.Context, rec *StatusRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var propsJSON []byte
	if rec.Props != nil {
		b, err := json.Marshal(rec.Props)
		if err != nil {
			return fmt.Errorf("marshal props: %w", err)
		}
		propsJSON = b
	}

	query := `
		INSERT INTO status_events (id, job_id, kind, state, description, task_id, props, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.JobID,
		string(rec.Kind),
		rec.State,
		nullString(rec.Description),
		nullString(rec.TaskID),
		propsJSON,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert status event: %w", err)
	}
	return nil
}

// ListByJob возвращает записи задачи в порядке вставки.
func (r *StatusRepo) ListByJob(ctx context.Context, jobID string) ([]StatusRecord, error) {
	query := `
		SELECT id, job_id, kind, state, description, task_id, props, created_at
		FROM status_events
		WHERE job_id = $1
		ORDER BY seq ASC
	`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list status events: %w", err)
	}

	records, err := pgx.CollectRows(rows, scanStatusRecord)
	if err != nil {
		return nil, fmt.Errorf("scan status events: %w", err)
	}
	return records, nil
}

func scanStatusRecord(row pgx.CollectableRow) (StatusRecord, error) {
	var rec StatusRecord
	var kind string
	var state *int16
	var description, taskID *string
	var propsJSON []byte

	if err := row.Scan(&rec.ID, &rec.JobID, &kind, &state, &description, &taskID, &propsJSON, &rec.CreatedAt); err != nil {
		return rec, err
	}

	rec.Kind = RecordKind(kind)
	if state != nil {
		s := int(*state)
		rec.State = &s
	}
	if description != nil {
		rec.Description = *description
	}
	if taskID != nil {
		rec.TaskID = *taskID
	}
	if propsJSON != nil {
		if err := json.Unmarshal(propsJSON, &rec.Props); err != nil {
			return rec, fmt.Errorf("unmarshal props: %w", err)
		}
	}
	return rec, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
