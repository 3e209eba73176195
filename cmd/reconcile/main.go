// Command reconcile is the interconnection-queue reconciliation service.
package main

import (
	"log/slog"
	"os"

	"github.com/gridatlas/queue-etl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
