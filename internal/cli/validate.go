package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Dry-run a snapshot vintage with strict taxonomy mapping",
	Long: `Validate ingests and canonicalizes every configured snapshot
without writing anything. Taxonomy mapping is strict: the first raw fuel or
status value with no table entry fails the command, so vocabulary drift is
caught before a new vintage is accepted into the scheduled run.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp(true, false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := a.pipeline.Validate(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("validated %d projects\n", summary.Projects)
	for src, n := range summary.BySource {
		fmt.Printf("  %-6s %d\n", src, n)
	}
	return nil
}
