package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build time variables, set via ldflags.
var (
	Version   = "0.0.0-unreleased"
	BuildDate = "unknown"
)

var RootCmd = &cobra.Command{
	Use:   "devmon",
	Short: "Device monitoring MQTT client",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func CommandVersion() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Version   : %s\n", Version)
			fmt.Printf("Build date: %s\n", BuildDate)
			fmt.Printf("Go        : %s\n", runtime.Version())
		},
	}

	return versionCmd
}
