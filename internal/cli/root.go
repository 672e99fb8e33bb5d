// Package cli implements the wide command line.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile   string
	outputFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wide",
	Short: "WIDE server - Ethereum sign-in and credential storage",
	Long: `wide serves sign-in with Ethereum, an owner-scoped store for encrypted
credentials and an integrity pipeline that anchors signed proofs of stored
payloads to an on-chain log.

Configuration is read from wide.yaml (./config or the working directory)
or the file given with --config. Every key can be overridden with a
WIDE_ prefixed environment variable, e.g. WIDE_REDIS_URL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is ./config/wide.yaml or ./wide.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text",
		"output format (text, json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(versionCmd)
}
