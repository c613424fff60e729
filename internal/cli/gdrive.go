package cli

import (
	"encoding/json"
	"fmt"

	"github.com/agentllm/agentllm/internal/gdrive"
	"github.com/agentllm/agentllm/internal/oauth/providers"
	"github.com/spf13/cobra"
)

func (a *App) newGDriveCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gdrive",
		Short: "Read Google Drive documents with the stored Google credential",
	}

	get := &cobra.Command{
		Use:   "get <url-or-id>",
		Short: "Print a document: Docs as markdown, Sheets as CSV, Slides as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeFn, err := a.driveExporter(cmd, g)
			if err != nil {
				return err
			}
			defer closeFn()

			doc, err := e.DocumentContent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(a.out, doc.Content)
			return err
		},
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the Google account the stored token belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, closeFn, err := a.driveExporter(cmd, g)
			if err != nil {
				return err
			}
			defer closeFn()

			u, err := e.UserInfo(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"authenticated_user": u})
		},
	}

	cmd.AddCommand(get, whoami)
	return cmd
}

func (a *App) driveExporter(cmd *cobra.Command, g *globalFlags) (*gdrive.Exporter, func(), error) {
	ctx := cmd.Context()

	pcfg, err := providers.LoadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	google := providers.NewGoogleDriveProvider(pcfg, nil, nil)

	store, closeStore, err := a.openStore(ctx, g.dbPath, false)
	if err != nil {
		return nil, nil, err
	}

	ts, err := gdrive.TokenSource(ctx, google.OAuthConfig(), store, g.userID, a.logger)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("google credential for %s: %w", g.userID, err)
	}

	e, err := a.newDrive(ctx, ts, a.logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return e, closeStore, nil
}
