package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *App) newCredentialsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Inspect stored credentials",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List providers with a stored credential for --user-id",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := a.openStore(cmd.Context(), g.dbPath, false)
			if err != nil {
				return err
			}
			defer closeStore()

			names, err := store.Providers(cmd.Context(), g.userID)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintf(a.out, "No credentials stored for %s\n", g.userID)
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(a.out, n)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove the stored credential for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore(cmd.Context(), g.dbPath, false)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Delete(cmd.Context(), args[0], g.userID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted %s credential for %s\n", args[0], g.userID)
			return nil
		},
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Remove every stored credential for --user-id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sm, err := openDatabase(cmd.Context(), g.dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = sm.Close() }()

			n, err := sm.PurgeUser(cmd.Context(), g.userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted %d credential(s) for %s\n", n, g.userID)
			return nil
		},
	}

	cmd.AddCommand(list, del, purge)
	return cmd
}
