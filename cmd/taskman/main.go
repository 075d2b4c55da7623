// taskman はタスク管理APIサーバーのエントリーポイント。
// サブコマンド（serve / worker / migrate / healthcheck）はapp.Runが解釈する。
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/taskman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
