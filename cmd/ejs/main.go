// Command ejs is the host-side driver for the embedded interpreter:
// it is not part of the embedding API itself (that's embedding.go),
// just one concrete host built on top of it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ejs",
	Short: "ejs runs, REPLs or serves the embedded JavaScript interpreter",
	Long: "ejs is a host CLI around the ejs interpreter engine: it runs scripts,\n" +
		"opens an interactive REPL, or serves a long-running instance with a\n" +
		"Prometheus metrics endpoint and a cron-driven host tick.",
}

func main() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.ejs.yaml)")
	rootCmd.PersistentFlags().Int("pool-size", 16384, "number of cells in the engine's pool")
	rootCmd.PersistentFlags().Bool("strict", false, "set vm.strict_mode in the engine config (the engine does not act on it)")
	_ = viper.BindPFlag("vm.pool_size", rootCmd.PersistentFlags().Lookup("pool-size"))
	_ = viper.BindPFlag("vm.strict_mode", rootCmd.PersistentFlags().Lookup("strict"))

	rootCmd.AddCommand(runCmd, replCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig wires viper the way the rest of the Go ecosystem's cobra
// CLIs do: an optional --config file, falling back to $HOME/.ejs.yaml,
// with EJS_-prefixed environment variables overriding the config file
// (command-line flags still take precedence over both).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".ejs")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("EJS")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig() // missing config file is not fatal
}

// engineConfigFromViper builds an engine Config seeded from whatever
// viper resolved (flags, config file, env), the bridge between the
// CLI's cobra/viper world and the engine's own Config type.
func engineConfigFromViper() *engineConfig {
	return &engineConfig{
		poolSize: viper.GetInt("vm.pool_size"),
		strict:   viper.GetBool("vm.strict_mode"),
	}
}

type engineConfig struct {
	poolSize int
	strict   bool
}
