package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brypt-io/brypt-core/internal/config"
	"github.com/brypt-io/brypt-core/internal/telemetry"
	"github.com/brypt-io/brypt-core/pkg/api"
)

// newServeCmd builds either the foreground `serve` command or its quieter
// `daemon` alias: both run the core until SIGINT/SIGTERM with the same
// logging; daemon additionally logs the peer counts every 30 seconds.
func newServeCmd(env *cliEnv, daemon bool) *cobra.Command {
	var (
		listen    string
		bootstrap string
		name      string
		desc      string
	)

	use := "serve"
	short := "Run a brypt node in the foreground"
	if daemon {
		use = "daemon"
		short = "Run a brypt node as a long-lived background process"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(env, listen, bootstrap, name, desc, daemon)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "/ip4/0.0.0.0/tcp/0", "multiaddr to listen on")
	cmd.Flags().StringVar(&bootstrap, "connect", "", "multiaddr of a peer to dial on start")
	cmd.Flags().StringVar(&name, "name", "", "node name recorded in node details")
	cmd.Flags().StringVar(&desc, "description", "", "node description recorded in node details")
	return cmd
}

func runServe(env *cliEnv, listen, bootstrap, name, desc string, daemon bool) error {
	logger := telemetry.NewLogrus(env.logLevel())
	svc := api.NewService(logger)

	svc.Options().SetBaseFilepath(*env.baseDir)
	svc.Options().SetConfigFilename(*env.configFile)
	svc.Options().SetBootstrapFilename(*env.bootFile)
	svc.Options().SetVerbosity(*env.verbosity)
	if name != "" || desc != "" {
		svc.Options().SetDetails(name, desc)
	}
	svc.Options().SetIdentifierPersistence(config.Persistent)
	svc.Options().AttachEndpoint(config.AttachedEndpoint{Protocol: "tcp", Binding: listen, Bootstrap: bootstrap})

	if code := svc.Start(); code != 0 {
		return fmt.Errorf("start: result code %d", code)
	}
	defer svc.Stop()

	id, _ := svc.GetIdentifier()
	log.Printf("brypt node %s listening on %s", id, listen)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if daemon {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-sigCh:
				log.Printf("shutting down")
				return nil
			case <-ticker.C:
				active, inactive, observed := svc.PeerCounts()
				log.Printf("peers: %d active, %d inactive, %d observed", active, inactive, observed)
			}
		}
	}

	<-sigCh
	log.Printf("shutting down")
	return nil
}
