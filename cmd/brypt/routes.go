package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brypt-io/brypt-core/internal/telemetry"
	"github.com/brypt-io/brypt-core/pkg/api"
)

// newRoutesCmd is a route-table diagnostic. It
// registers the reference routes any brypt host process wires (the set in
// registerReferenceRoutes) against an unstarted, otherwise-empty
// service, then lists or fuzzy-searches them -- there is no admin channel
// into an already-running node's route table, so this inspects the
// reference set a deployment is expected to register.
func newRoutesCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Inspect the reference route table",
	}
	cmd.AddCommand(newRoutesListCmd(), newRoutesSearchCmd())
	return cmd
}

func referenceService() *api.Service {
	svc := api.NewService(telemetry.Noop())
	registerReferenceRoutes(svc)
	return svc
}

func newRoutesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every registered route",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, r := range referenceService().Routes() {
				fmt.Printf("%-24s %s\n", r.Path, r.Description)
			}
			return nil
		},
	}
}

func newRoutesSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Fuzzy-search routes by path or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := referenceService().SearchRoutes(args[0], limit)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%-24s score=%.3f\n", r.Path, r.Score)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of results")
	return cmd
}
