// Package commands implements the CLI commands for cbkvctl.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

// Build-time version information, set by main from ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Flags holds the global flag values synced from rootCmd in
// PersistentPreRun, so leaf commands can read them without threading a
// *cobra.Command through every helper.
var Flags struct {
	ConfigPath string
	Nodes      []string
	Bucket     string
	Username   string
	Password   string
	Output     string
	Verbose    bool
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cbkvctl",
	Short: "cbkv operator CLI",
	Long: `cbkvctl is a command-line client for exercising a cbkv-go cluster
connection directly: it bootstraps against a set of KV nodes, opens a
bucket, and issues one document operation per invocation.

Use "cbkvctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		Flags.ConfigPath, _ = cmd.Flags().GetString("config")
		Flags.Nodes, _ = cmd.Flags().GetStringSlice("nodes")
		Flags.Bucket, _ = cmd.Flags().GetString("bucket")
		Flags.Username, _ = cmd.Flags().GetString("username")
		Flags.Password, _ = cmd.Flags().GetString("password")
		Flags.Output, _ = cmd.Flags().GetString("output")
		Flags.Verbose, _ = cmd.Flags().GetBool("verbose")
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	// Global persistent flags.
	rootCmd.PersistentFlags().String("config", "", "Path to a cbkv YAML config file")
	rootCmd.PersistentFlags().StringSlice("nodes", nil, "Bootstrap KV node addresses (host:port), overrides config")
	rootCmd.PersistentFlags().String("bucket", "default", "Bucket name to operate against")
	rootCmd.PersistentFlags().String("username", "", "Cluster username, overrides config")
	rootCmd.PersistentFlags().String("password", "", "Cluster password, overrides config")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose (debug) logging")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(upsertCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(poolStatsCmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
