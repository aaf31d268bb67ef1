package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/mq"
	"github.com/shaiso/Plantit/internal/repo"
	"github.com/shaiso/Plantit/internal/reporter"
)

// NewStatusCmd создаёт группу команд для просмотра обновлений статуса.
func NewStatusCmd(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Inspect status updates published by runs",
	}

	cmd.AddCommand(
		newStatusWatchCmd(env),
		newStatusHistoryCmd(env),
	)

	return cmd
}

func newStatusWatchCmd(env Env) *cobra.Command {
	var jobID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow status updates from RabbitMQ",
		Long: `Consume the plantit.status.events queue and print every update.
Messages are acknowledged, so only one watcher should consume the queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Config()
			if err != nil {
				return err
			}
			logger := env.Logger()

			conn, err := mq.NewConnection(cmd.Context(), cfg.Reporter.RabbitMQURL, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := mq.SetupTopology(cmd.Context(), conn); err != nil {
				return err
			}

			w := env.Output().Writer()
			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Queue:   string(mq.QueueStatusEvents),
				Handler: WatchHandler(w, jobID),
			})

			err = consumer.Start(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&jobID, "job-id", "", "Only print updates for this job")

	return cmd
}

// WatchHandler печатает сообщения в w. Пустой jobID — все задачи.
func WatchHandler(w io.Writer, jobID string) mq.Handler {
	return func(_ context.Context, d *mq.Delivery) error {
		if jobID != "" && d.Message.JobID != jobID {
			return nil
		}
		_, err := fmt.Fprintln(w, FormatMessage(&d.Message))
		return err
	}
}

type statusSet struct {
	StatusSet []reporter.StatusEntry `json:"status_set"`
}

// FormatMessage форматирует сообщение статуса одной строкой.
func FormatMessage(msg *mq.Message) string {
	prefix := fmt.Sprintf("%s [%s]", msg.Timestamp.Format(time.RFC3339), msg.JobID)

	if msg.Type == mq.MessageTypeStatusUpdated {
		if p, err := mq.ParsePayload[statusSet](msg); err == nil && len(p.StatusSet) > 0 {
			e := p.StatusSet[0]
			return fmt.Sprintf("%s Status (%s): %s", prefix, e.State, e.Description)
		}
	}

	body, err := json.Marshal(msg.Payload)
	if err != nil {
		body = []byte(fmt.Sprint(msg.Payload))
	}
	return fmt.Sprintf("%s %s %s", prefix, msg.Type, body)
}

func newStatusHistoryCmd(env Env) *cobra.Command {
	var jobID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the status journal of a job from PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Config()
			if err != nil {
				return err
			}

			pool, err := repo.NewPool(cmd.Context(), cfg.Reporter.DBURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			records, err := repo.NewStatusRepo(pool).ListByJob(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			env.Logger().Debug("status history loaded", zap.String("job_id", jobID), zap.Int("records", len(records)))

			env.Output().Print(
				[]string{"TIME", "KIND", "STATE", "TASK", "DETAILS"},
				HistoryRows(records),
				records,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobID, "job-id", "", "Job ID")
	cmd.MarkFlagRequired("job-id")

	return cmd
}

// HistoryRows превращает записи журнала в строки таблицы.
func HistoryRows(records []repo.StatusRecord) [][]string {
	rows := make([][]string, len(records))
	for i, r := range records {
		state := ""
		if r.State != nil {
			state = domain.StatusState(*r.State).String()
		}

		details := r.Description
		if details == "" && len(r.Props) > 0 {
			if b, err := json.Marshal(r.Props); err == nil {
				details = string(b)
			}
		}

		rows[i] = []string{
			r.CreatedAt.Format(time.RFC3339),
			string(r.Kind),
			state,
			r.TaskID,
			details,
		}
	}
	return rows
}
