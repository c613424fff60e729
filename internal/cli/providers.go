package cli

import (
	"fmt"

	"github.com/agentllm/agentllm/internal/oauth/providers"
	"github.com/spf13/cobra"
)

func (a *App) newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Inspect OAuth provider configuration",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List OAuth providers and whether client credentials are set",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := providers.LoadConfig(cmd.Context())
			if err != nil {
				return err
			}
			reg := providers.NewDefaultRegistry(cfg, nil, nil)
			for _, name := range reg.Names() {
				status := "not configured"
				if reg.Provider(name).IsConfigured() {
					status = "configured"
				}
				fmt.Fprintf(a.out, "  %-10s %s\n", name, status)
			}
			return nil
		},
	}

	cmd.AddCommand(list)
	return cmd
}
