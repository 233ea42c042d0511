// Package main is the jobflowd daemon entrypoint: a cobra root command with
// a serve subcommand that wires the fx application (cobra.OnInitialize for
// logging/config, viper for flag/env/file binding).
package main

import (
	"context"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logging.Logger("cmd")

var cfgFile string
var logLevel string

var rootCmd = &cobra.Command{
	Use:     "jobflowd",
	Short:   "jobflowd runs a persistent, in-process job queue",
	Version: "0.1.0",
}

func init() {
	cobra.OnInitialize(initLogging, initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "logging level")

	rootCmd.AddCommand(serveCmd)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func initConfig() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("JOBFLOWD")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		cobra.CheckErr(viper.ReadInConfig())
	} else {
		viper.SetConfigName("jobflowd-config")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		_ = viper.ReadInConfig()
	}
}

func initLogging() {
	if logLevel != "" {
		ll, err := logging.LevelFromString(logLevel)
		cobra.CheckErr(err)
		logging.SetAllLoggers(ll)
		return
	}
	logging.SetAllLoggers(logging.LevelError)
	logging.SetLogLevel("cmd", "info")
	logging.SetLogLevel("cmd/serve", "info")
	logging.SetLogLevel("fx/supervisor", "info")
	logging.SetLogLevel("fx/echo", "warn")
}
