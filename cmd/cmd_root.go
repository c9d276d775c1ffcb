package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cmdOutput      io.Writer
	serverFlag     string
	portFlag       int
	identifierFlag string
	debugFlag      bool
)

var rootCmd = &cobra.Command{
	Use:   "wlanpi-mqtt-bridge",
	Short: "Bridge MQTT topics to the WLAN Pi core's HTTP/JSON API",
	Long: `wlanpi-mqtt-bridge subscribes to MQTT command topics derived from the
WLAN Pi core's OpenAPI document, forwards matching messages as HTTP
requests against the core, and publishes the responses back as JSON
envelopes.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          serveRun,
}

func init() {
	cmdOutput = os.Stdout
	rootCmd.SetOut(cmdOutput)

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", `MQTT broker address (overrides the config file; "<gateway>" resolves the default gateway)`)
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "MQTT broker port (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&identifierFlag, "identifier", "", "device identifier used in topic names (defaults to the primary interface MAC)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable the debug HTTP surface")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(routesCmd)
}

// GetRootCmd returns the root cobra command, mainly for tests.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// Execute runs the root command, logging and exiting non-zero on
// startup failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
