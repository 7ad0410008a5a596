package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"tunnelctl/pkg/logging"
)

var (
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tunnelctl",
	Short: "Start a network tunnel and port-forward specific ports on the destination host through the tunnel",
	Long: `tunnelctl starts a network tunnel that forwards a local TCP port to a
remote destination through an intermediary transport process, and keeps the
tunnel's child process supervised for its whole lifetime.

Once the tunnel is ready to accept traffic, the literal token "READY" is
written to stdout so an orchestrating process can unblock; all diagnostics go
to stderr as structured log records. The process exits zero when the tunnel
terminates cleanly and non-zero otherwise.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. invalid arguments, failed connections)
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// stdout carries the READY protocol token, so logs must go to stderr.
		logging.Init(logging.ParseLevel(logLevel), logFormat, os.Stderr)
	},
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v // Set cobra's version field as well
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Set up version template
	rootCmd.SetVersionTemplate(`{{printf "tunnelctl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newSSHCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
}
