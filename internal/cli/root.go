package cli

import (
	"github.com/agentllm/agentllm/internal/filex"
	"github.com/agentllm/agentllm/internal/logging"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	dbPath   string
	userID   string
	logLevel string
}

// NewRootCmd builds the command tree. .env files are loaded and the logger
// configured before any subcommand runs.
func (a *App) NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "agentllm",
		Short:         "Jira triage and provider credential tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := filex.LoadDotEnv(a.dotEnvFiles...); err != nil {
				return err
			}
			levelName := g.logLevel
			if levelName == "" {
				levelName = a.getenv("LOG_LEVEL")
			}
			level, err := logging.ParseLevel(levelName)
			if err != nil {
				return err
			}
			// stdout stays machine readable; logs go to stderr
			a.logger = logging.New(a.errOut, level, false)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.dbPath, "db-path", DefaultDBPath, "credential database path or postgres:// URL")
	pf.StringVar(&g.userID, "user-id", DefaultUserID, "user whose credentials are used")
	pf.StringVar(&g.logLevel, "log-level", "", "DEBUG|INFO|WARN|ERROR (default $LOG_LEVEL or INFO)")

	root.AddCommand(
		a.newTriageCmd(g),
		a.newJiraCmd(g),
		a.newGDriveCmd(g),
		a.newProvidersCmd(),
		a.newOAuthCmd(g),
		a.newCredentialsCmd(g),
	)
	return root
}
