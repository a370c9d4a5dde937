// medic runs probes against Juju deployments to diagnose their health.
//
// Usage:
//
//	medic check -p <probe-url> [--model=<name> | --status=<file> --bundle=<file> --show-unit=<file>]
//	medic schema
//	medic history [--limit=<n>] [run-id]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"medic/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "medic",
	Short: "Diagnose Juju deployments with scriptlet and builtin probes",
	Long: "Medic resolves probes from local paths, GitHub, and rulesets into a tree,\n" +
		"runs every check against status, bundle, and show-unit artifacts, and\n" +
		"reports the aggregated results.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return err
		}
		logging.Init(level, rootFlags.logFormat)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
