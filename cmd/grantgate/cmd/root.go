// Package cmd provides the CLI commands for Grant Gate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Grant-Gate/grantgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "grantgate",
	Short: "Grant Gate - temporary access broker for automated agents",
	Long: `Grant Gate grants automated agents temporary, scoped access to
registered tools. Every access request passes a rate-limit gate,
policy-based authorization, and comes back as a short-lived signed
credential. Every decision is audited.

Quick start:
  1. Create a config file: grantgate init
  2. Run: grantgate start

Configuration:
  Config is loaded from grantgate.yaml in the current directory,
  $HOME/.grantgate/, or /etc/grantgate/.

  Environment variables can override config values with the GRANT_GATE_ prefix.
  Example: GRANT_GATE_SIGNING_SECRET=...

Commands:
  start       Start the trust core
  grant       Request access for an agent (one-shot)
  init        Write a commented starter config file
  hash-key    Generate a hash for an API key
  version     Print version information`,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./grantgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
