package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brypt-io/brypt-core/internal/config"
	"github.com/brypt-io/brypt-core/internal/telemetry"
	"github.com/brypt-io/brypt-core/pkg/api"
)

// newConnectCmd starts a node and immediately dials a peer, then runs in
// the foreground like `serve` -- there is no standing daemon to send an
// IPC connect request to, so connect brings its own node up.
func newConnectCmd(env *cliEnv) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "connect <multiaddr>",
		Short: "Start a node and dial a peer at the given multiaddr",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(env, listen, args[0])
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "/ip4/0.0.0.0/tcp/0", "multiaddr to listen on")
	return cmd
}

func runConnect(env *cliEnv, listen, target string) error {
	logger := telemetry.NewLogrus(env.logLevel())
	svc := api.NewService(logger)

	svc.Options().SetBaseFilepath(*env.baseDir)
	svc.Options().SetConfigFilename(*env.configFile)
	svc.Options().SetBootstrapFilename(*env.bootFile)
	svc.Options().SetIdentifierPersistence(config.Persistent)
	svc.Options().AttachEndpoint(config.AttachedEndpoint{Protocol: "tcp", Binding: listen})

	if code := svc.Start(); code != 0 {
		return fmt.Errorf("start: result code %d", code)
	}
	defer svc.Stop()

	if code := svc.Connect("tcp", target); code != 0 {
		return fmt.Errorf("connect to %s: result code %d", target, code)
	}
	log.Printf("connected to %s", target)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutting down")
	return nil
}
