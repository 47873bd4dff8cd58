// Command raichaind runs the raichain node and its companion wallet
// utilities (spec §6 "CLI surface"). Subcommands: daemon, wallet_create,
// wallet_import, account_create, bootstrap_restart, status.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"raichain/pkg/config"
)

// Exit codes per spec §6.
const (
	exitOK                 = 0
	exitConfigError        = 1
	exitRuntimeError       = 2
	exitLedgerInconsistent = 3
)

func main() {
	_ = godotenv.Load()

	var envName string
	root := &cobra.Command{
		Use:   "raichaind",
		Short: "raichain node daemon and wallet CLI",
	}
	root.PersistentFlags().StringVar(&envName, "env", "", "config overlay name (RAICHAIN_ENV)")

	root.AddCommand(daemonCmd(&envName))
	root.AddCommand(walletCreateCmd(&envName))
	root.AddCommand(walletImportCmd(&envName))
	root.AddCommand(accountCreateCmd(&envName))
	root.AddCommand(bootstrapRestartCmd(&envName))
	root.AddCommand(statusCmd(&envName))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func loadConfig(envName string) (*config.Config, error) {
	if envName == "" {
		return config.LoadFromEnv()
	}
	return config.Load(envName)
}

// exitCodeFor classifies a command error into spec §6's exit code space:
// a config problem (surfaced while loading config.Config) or a generic
// runtime failure. No command in this tree exits with
// exitLedgerInconsistent.
func exitCodeFor(err error) int {
	if _, ok := err.(*configError); ok {
		return exitConfigError
	}
	return exitRuntimeError
}

type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func wrapConfigError(err error) error {
	if err == nil {
		return nil
	}
	return &configError{err: err}
}
