package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shaiso/Plantit/internal/config"
	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/engine"
	"github.com/shaiso/Plantit/internal/orchestrator"
	"github.com/shaiso/Plantit/internal/runtime"
	"github.com/shaiso/Plantit/internal/worker"
)

// ErrRunFailed — run завершился со статусом FAILED.
var ErrRunFailed = errors.New("run failed")

// Env — общие зависимости команд. Config загружается лениво, чтобы
// --help и validate работали без окружения.
type Env struct {
	Config func() (*config.Config, error)
	Output func() *Output
	Logger func() *zap.Logger
}

// NewRunCmd создаёт команду plantit run.
func NewRunCmd(env Env) *cobra.Command {
	var (
		reporters   string
		jobID       string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run DESCRIPTOR",
		Short: "Execute a run descriptor",
		Long: `Execute a run described by a YAML file: clone the repository, stage
inputs, run the container commands and upload outputs, reporting
status to the configured backends.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Config()
			if err != nil {
				return err
			}
			if reporters != "" {
				cfg.SetReporters(reporters)
			}
			if jobID != "" {
				cfg.Reporter.JobID = jobID
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			run, err := engine.LoadRun(args[0])
			if err != nil {
				return err
			}

			res, err := Execute(cmd.Context(), cfg, run, env.Output(), env.Logger())
			if err != nil {
				return err
			}
			if !res.Succeeded() {
				return fmt.Errorf("%w: %v", ErrRunFailed, res.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reporters, "reporter", "", "Status backends, comma separated (console, rest, amqp, postgres)")
	cmd.Flags().StringVar(&jobID, "job-id", "", "Supervisor job ID (default: PLANTIT_JOB_ID or the run ID)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address")

	return cmd
}

// Execute собирает зависимости по конфигурации и выполняет run.
// Ошибка возвращается только если run не удалось начать.
func Execute(ctx context.Context, cfg *config.Config, run *domain.Run, out *Output, logger *zap.Logger) (*orchestrator.RunResult, error) {
	if cfg.Reporter.JobID == "" {
		cfg.Reporter.JobID = run.ID
	}

	rep, closeReporter, err := BuildReporter(ctx, cfg.Reporter, out.Writer(), logger)
	if err != nil {
		return nil, err
	}
	defer closeReporter()

	st, err := BuildStore(ctx, cfg.Store, run.Token, logger)
	if err != nil {
		return nil, err
	}

	rt, err := runtime.New(cfg.Exec.Runtime, cfg.Exec.DockerBin, logger)
	if err != nil {
		return nil, err
	}

	registry := worker.NewRegistry(worker.Deps{
		Store:   st,
		Runtime: rt,
		Clone: worker.CloneConfig{
			Depth:   cfg.Exec.CloneDepth,
			Timeout: cfg.Exec.CloneTimeout,
		},
	})

	orch := orchestrator.New(orchestrator.Config{
		Builder:     engine.NewBuilder(st, logger),
		Registry:    registry,
		Reporter:    rep,
		MaxParallel: cfg.Exec.MaxParallel,
		Logger:      logger,
	})

	if cfg.MetricsAddr != "" {
		srv, err := serveMetrics(cfg.MetricsAddr, orch, logger)
		if err != nil {
			return nil, err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	res := orch.Run(ctx, run)

	out.Print(
		[]string{"RUN", "STATUS", "STAGES", "FAILED_STAGE", "DURATION"},
		[][]string{{
			res.RunID,
			string(res.Status),
			strconv.Itoa(res.Stats.TotalStages),
			res.FailedStage,
			res.Duration.Round(time.Millisecond).String(),
		}},
		runSummary(res),
	)
	return res, nil
}

type runSummaryJSON struct {
	RunID       string                `json:"run_id"`
	Status      string                `json:"status"`
	FailedStage string                `json:"failed_stage,omitempty"`
	Error       string                `json:"error,omitempty"`
	Stats       orchestrator.RunStats `json:"stats"`
	DurationMS  int64                 `json:"duration_ms"`
}

func runSummary(res *orchestrator.RunResult) runSummaryJSON {
	s := runSummaryJSON{
		RunID:       res.RunID,
		Status:      string(res.Status),
		FailedStage: res.FailedStage,
		Stats:       res.Stats,
		DurationMS:  res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		s.Error = res.Err.Error()
	}
	return s
}

// serveMetrics запускает /metrics и /healthz. /healthz отдаёт статистику
// активного run.
func serveMetrics(addr string, orch *orchestrator.Orchestrator, logger *zap.Logger) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		state := orch.Active()
		if state == nil {
			w.Write([]byte("ok"))
			return
		}
		s := state.Stats()
		fmt.Fprintf(w, "ok: %d/%d stages succeeded, %d running\n", s.SucceededStages, s.TotalStages, s.RunningStages)
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()
	return srv, nil
}

// NewValidateCmd создаёт команду plantit validate.
func NewValidateCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "validate DESCRIPTOR",
		Short: "Check a run descriptor without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := engine.LoadRun(args[0])
			if err != nil {
				return err
			}

			out := env.Output()
			if out.JSONMode() {
				out.JSON(run)
				return nil
			}

			output := "-"
			if run.Output != nil {
				output = run.Output.To
			}
			out.Table(
				[]string{"ID", "IMAGE", "COMMANDS", "INPUT", "OUTPUT"},
				[][]string{{run.ID, run.Image, strconv.Itoa(len(run.Commands)), string(run.InputKind()), output}},
			)
			out.Success(fmt.Sprintf("Run descriptor %s is valid", args[0]))
			return nil
		},
	}
}
