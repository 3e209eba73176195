// Package cli wires the reconcile commands: run, serve, and validate.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Interconnection-queue snapshot reconciliation",
	Long: `reconcile ingests periodic snapshots of generator interconnection
queues (MISO, CAISO, PJM, ERCOT, SPP, NYISO, ISO-NE, plus offshore-wind and
air-permit trackers) and reconciles them into one canonical model: projects,
resource slots, fractional county allocations, development-stage flags,
emissions estimates, and an append-only changelog of status intervals.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("reconcile v0.4.2")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; QETL_* env vars take precedence)")
	rootCmd.AddCommand(versionCmd)
}
