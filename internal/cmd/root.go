package cmd

import (
	"fmt"
	"os"

	"github.com/Aikhjarto/ping-process/internal/classifier"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	outputFmt string
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "ping-process",
	Short: "ping-process — anomaly filter for long-running pings",
	Long: `ping-process reads the output of "ping -D" and forwards only the
interesting lines: excessive round-trip times, duplicate or filtered
replies, and gaps in the icmp_seq counter. Optional heartbeat messages
prove the pipeline is still alive, and SIGUSR1 prints the last seen
line to stderr.

Example usage:
  ping -D 8.8.8.8 | ping-process pipe`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.ping-process.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "output format: text, json")

	rootCmd.PersistentFlags().Float64P("max-time-ms", "t", 500, "round-trip times exceeding this many ms are logged")
	rootCmd.PersistentFlags().String("fmt", classifier.DefaultTimeFormat, "strftime pattern for output timestamps")
	rootCmd.PersistentFlags().Float64("heartbeat-interval", 0, "seconds without output before a liveness message; 0 disables")
	rootCmd.PersistentFlags().Int("allowed-seq-diff", 1, "tolerated icmp_seq jump before missed pings are reported")
	rootCmd.PersistentFlags().Bool("heartbeat-stdout", false, "send heartbeats to stdout instead of stderr")
	rootCmd.PersistentFlags().Bool("serve", false, "serve the live web dashboard")
	rootCmd.PersistentFlags().String("port", "8632", "dashboard port")

	for _, key := range []string{
		"max-time-ms", "fmt", "heartbeat-interval", "allowed-seq-diff",
		"heartbeat-stdout", "serve", "port",
	} {
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".ping-process")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}
