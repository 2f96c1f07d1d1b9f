// Command brypt is a reference host process over pkg/api: a cobra CLI
// that starts a node in the foreground or background, reports its status,
// prints a bootstrap invite, dials a peer, and inspects the route table.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		baseDir    string
		verbosity  string
		configFile string
		bootFile   string
	)

	root := &cobra.Command{
		Use:   "brypt",
		Short: "brypt is a peer-to-peer mesh runtime node",
	}
	root.PersistentFlags().StringVar(&baseDir, "base-dir", ".", "directory config, bootstrap, and identity files resolve against")
	root.PersistentFlags().StringVar(&verbosity, "verbosity", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&configFile, "config", "config.json", "configuration filename, relative to --base-dir")
	root.PersistentFlags().StringVar(&bootFile, "bootstrap", "bootstrap.json", "bootstrap filename, relative to --base-dir")

	env := &cliEnv{baseDir: &baseDir, verbosity: &verbosity, configFile: &configFile, bootFile: &bootFile}

	root.AddCommand(
		newServeCmd(env, false),
		newServeCmd(env, true),
		newStatusCmd(env),
		newInviteCmd(env),
		newConnectCmd(env),
		newRoutesCmd(env),
	)
	return root
}

// cliEnv carries the root command's persistent flags down to each
// subcommand without resorting to package-level globals.
type cliEnv struct {
	baseDir    *string
	verbosity  *string
	configFile *string
	bootFile   *string
}

func (e *cliEnv) logLevel() logrus.Level {
	level, err := logrus.ParseLevel(*e.verbosity)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
