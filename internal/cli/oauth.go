package cli

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/agentllm/agentllm/internal/oauth/providers"
	"github.com/agentllm/agentllm/internal/oauth/state"
	"github.com/agentllm/agentllm/internal/oauthserver/web"
	"github.com/spf13/cobra"
)

// DefaultPublicURL matches the callback server's development default.
const DefaultPublicURL = "http://localhost:8501"

func (a *App) newOAuthCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "Start provider authorization for a user",
	}

	var (
		publicURL string
		ttl       time.Duration
	)
	link := &cobra.Command{
		Use:   "url <provider>",
		Short: "Print a signed authorization link for --user-id",
		Long: "Signs a state token for --user-id with AGENTLLM_OAUTH_STATE_SECRET and prints the\n" +
			"callback server's authorize link. Whoever completes consent through the link\n" +
			"stores their token for that user, so hand it only to that user.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			known := providers.NewDefaultRegistry(providers.Config{}, nil, nil).Names()
			if !slices.Contains(known, name) {
				return fmt.Errorf("unknown provider %q (known: %s)", name, strings.Join(known, ", "))
			}

			v, err := state.NewValidator(a.getenv("AGENTLLM_OAUTH_STATE_SECRET"), state.WithTTL(ttl))
			if err != nil {
				return fmt.Errorf("%w: set AGENTLLM_OAUTH_STATE_SECRET to the server's value", err)
			}
			token, err := v.Generate(g.userID)
			if err != nil {
				return err
			}

			if publicURL == "" {
				publicURL = a.getenv("AGENTLLM_OAUTH_PUBLIC_URL")
			}
			if publicURL == "" {
				publicURL = DefaultPublicURL
			}

			fmt.Fprintln(a.out, web.AuthorizeURL(publicURL, name, token))
			a.logger.Info(cmd.Context(), "authorization link issued", "provider", name, "user_id", g.userID, "valid_for", ttl)
			return nil
		},
	}
	link.Flags().StringVar(&publicURL, "public-url", "", "callback server base URL (default $AGENTLLM_OAUTH_PUBLIC_URL or "+DefaultPublicURL+")")
	link.Flags().DurationVar(&ttl, "ttl", state.DefaultTTL, "how long the link stays valid")

	cmd.AddCommand(link)
	return cmd
}
