package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is stamped by the build; falls back to module build info.
var version = ""

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "smart0183d",
		Short: "Marine NMEA-0183 instrument hub",
		Long: `smart0183d reads NMEA-0183 sentences from serial ports, TCP feeds,
child decoders or recorded files, turns every sentence field into a live
measurement, and serves the result over a web dashboard and JSON API.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the daemon version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("smart0183d %s\n", resolveVersion())
			bi, ok := debug.ReadBuildInfo()
			if !ok {
				return
			}
			for _, kv := range bi.Settings {
				switch kv.Key {
				case "vcs.revision":
					fmt.Printf("commit: %s\n", kv.Value)
				case "vcs.time":
					fmt.Printf("built: %s\n", kv.Value)
				}
			}
		},
	}
}

func resolveVersion() string {
	if version != "" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		return bi.Main.Version
	}
	return "(devel)"
}
