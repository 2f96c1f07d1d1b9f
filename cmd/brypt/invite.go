package main

import (
	"fmt"
	"path/filepath"

	"github.com/multiformats/go-multiaddr"
	"github.com/spf13/cobra"

	"github.com/brypt-io/brypt-core/internal/bootstrap"
	"github.com/brypt-io/brypt-core/internal/identitystore"
)

// newInviteCmd prints a scannable QR invite for a persisted node's
// identity, reusing internal/bootstrap.Invite rather than starting the
// node.
func newInviteCmd(env *cliEnv) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Print a bootstrap QR invite for this node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvite(env, address)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "externally reachable multiaddr to advertise (required)")
	cmd.MarkFlagRequired("address")
	return cmd
}

func runInvite(env *cliEnv, address string) error {
	addr, err := multiaddr.NewMultiaddr(address)
	if err != nil {
		return fmt.Errorf("invalid --address: %w", err)
	}

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
	if !found {
		return fmt.Errorf("no identity persisted yet at %s; run `brypt serve` once first", path)
	}

	invite := bootstrap.NewInvite(id.String(), addr, bootstrap.DefaultInviteExpiry)
	encoded, err := invite.Encode()
	if err != nil {
		return err
	}
	qr, err := invite.QRString()
	if err != nil {
		return err
	}

	fmt.Println(qr)
	fmt.Println(encoded)
	return nil
}
