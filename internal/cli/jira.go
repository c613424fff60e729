package cli

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/credentials"
	"github.com/agentllm/agentllm/internal/jira"
	"github.com/spf13/cobra"
)

func (a *App) newJiraCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jira",
		Short: "Manage the Jira token used by triage",
	}

	var serverURL string
	login := &cobra.Command{
		Use:   "login",
		Short: "Store a Jira personal access token",
		Long: `Store a Jira personal access token for --user-id. The token is read from
the terminal without echo, or from stdin when piped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if serverURL == "" {
				serverURL = a.getenv("JIRA_SERVER_URL")
			}
			return a.jiraLogin(cmd, g, serverURL)
		},
	}
	login.Flags().StringVar(&serverURL, "server-url", "", "Jira base URL (default $JIRA_SERVER_URL)")

	cmd.AddCommand(login)
	return cmd
}

func (a *App) jiraLogin(cmd *cobra.Command, g *globalFlags, serverURL string) error {
	ctx := cmd.Context()
	if serverURL == "" {
		return errors.New("--server-url is required")
	}

	token, err := GetSecret(a.stdinFd, bufio.NewReader(a.in), "Jira token", a.errOut)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	defer common.Wipe(token)
	if len(token) == 0 {
		return errors.New("empty token")
	}

	// validates the URL the same way triage will
	if _, err := jira.NewClient(serverURL, string(token)); err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx, g.dbPath, true)
	if err != nil {
		return err
	}
	defer closeStore()

	cred := &credentials.Credential{
		AccessToken: string(token),
		TokenType:   "Bearer",
		ServerURL:   serverURL,
	}
	if err := store.Upsert(ctx, common.ProviderJira, g.userID, cred); err != nil {
		return err
	}

	a.logger.Info(ctx, "jira token stored", "user_id", g.userID, "server_url", serverURL)
	fmt.Fprintf(a.out, "Stored Jira token for %s\n", g.userID)
	return nil
}
