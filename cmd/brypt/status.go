package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/brypt-io/brypt-core/internal/identitystore"
)

// newStatusCmd reports a node's persisted identity without bringing up
// its network, reading directly from the local identity store rather than
// through a running node's API.
func newStatusCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a node's persisted identity and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(env)
		},
	}
}

func runStatus(env *cliEnv) error {
	path := filepath.Join(*env.baseDir, "identity.db")
	store, err := identitystore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	id, found, err := store.LoadIdentifier()
	if err != nil {
		return err
	}

	fmt.Println("brypt node status")
	fmt.Println("-----------------")
	fmt.Printf("  Base dir:   %s\n", *env.baseDir)
	if found {
		fmt.Printf("  Identifier: %s\n", id)
	} else {
		fmt.Println("  Identifier: (none persisted yet)")
	}
	return nil
}
