// Plantit — выполняет контейнерные научные run'ы.
//
// Использование:
//
//	plantit [--json] <command> [flags]
//
// Команды:
//
//	run       Выполнить run descriptor
//	validate  Проверить run descriptor
//	terrain   Работа с хранилищем Terrain
//	status    Просмотр обновлений статуса
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Plantit/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := cli.NewRootCmd(cli.RootOptions{Version: version})

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
