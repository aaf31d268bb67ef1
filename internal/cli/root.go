package cli

import (
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shaiso/Plantit/internal/config"
	"github.com/shaiso/Plantit/internal/telemetry"
)

// RootOptions — параметры корневой команды. Пустые поля заменяются
// значениями процесса (окружение, stdout, stderr).
type RootOptions struct {
	Version string

	// LoadConfig — источник конфигурации (default: config.Load).
	LoadConfig func() (*config.Config, error)

	Stdout io.Writer
	Stderr io.Writer

	// Logger — готовый логгер; nil — telemetry.SetupLogger.
	Logger *zap.Logger
}

// NewRootCmd собирает дерево команд plantit.
func NewRootCmd(opts RootOptions) *cobra.Command {
	var jsonOutput bool

	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	rootCmd := &cobra.Command{
		Use:           "plantit",
		Short:         "Plantit: containerized workflow runs",
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.SetOut(opts.Stdout)
	rootCmd.SetErr(opts.Stderr)

	loadConfig := sync.OnceValues(opts.LoadConfig)

	var loggerOnce sync.Once
	logger := opts.Logger
	loggerFn := func() *zap.Logger {
		loggerOnce.Do(func() {
			if logger != nil {
				return
			}
			l, err := telemetry.SetupLogger()
			if err != nil {
				l = zap.NewNop()
			}
			logger = l
		})
		return logger
	}

	env := Env{
		Config: loadConfig,
		Output: func() *Output { return NewOutputTo(jsonOutput, opts.Stdout, opts.Stderr) },
		Logger: loggerFn,
	}

	rootCmd.AddCommand(
		NewRunCmd(env),
		NewValidateCmd(env),
		NewTerrainCmd(env),
		NewStatusCmd(env),
	)

	return rootCmd
}
