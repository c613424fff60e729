// Package cli implements the agentllm command line: triage runs, Jira token
// setup, Drive reads and credential inspection.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/agentllm/agentllm/internal/gdrive"
	"github.com/agentllm/agentllm/internal/llm"
	"github.com/agentllm/agentllm/internal/logging"
	"github.com/agentllm/agentllm/internal/reportstore"
	"github.com/agentllm/agentllm/internal/triage"
	"golang.org/x/oauth2"
)

// Defaults shared by the subcommands.
const (
	DefaultDBPath = "tmp/agent-data/agentllm.db"
	DefaultUserID = "jira-triager-bot"
	KeyFileName   = ".encryption_key"
)

// exitError carries a process exit code without printing anything.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Archiver stores a finished report.
type Archiver interface {
	Put(ctx context.Context, report any) (string, error)
}

// App holds the process streams and the constructors for outside services.
// Tests replace the constructors.
type App struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	getenv func(string) string
	logger logging.Logger

	// stdinFd is consulted for terminal detection; -1 means not a terminal.
	stdinFd int

	newRunner    func(apiKey, model string, log logging.Logger) (triage.ModelRunner, error)
	jiraClients  triage.ClientFactory
	jiraSearcher triage.SearcherFactory
	newArchive   func(ctx context.Context, cfg reportstore.Config, log logging.Logger) (Archiver, error)
	newDrive     func(ctx context.Context, ts oauth2.TokenSource, log logging.Logger) (*gdrive.Exporter, error)
	dotEnvFiles  []string
}

// NewApp wires the production dependencies on the process streams.
func NewApp() *App {
	return &App{
		in:      os.Stdin,
		out:     os.Stdout,
		errOut:  os.Stderr,
		getenv:  os.Getenv,
		logger:  logging.Nop(),
		stdinFd: int(os.Stdin.Fd()),
		newRunner: func(apiKey, model string, log logging.Logger) (triage.ModelRunner, error) {
			return llm.NewAnthropicRunner(apiKey,
				llm.WithModel(model),
				llm.WithSystemPrompt(triage.SystemPrompt),
				llm.WithLogger(log))
		},
		jiraClients:  triage.JiraClientFactory(nil),
		jiraSearcher: triage.JiraSearcherFactory(),
		newArchive: func(ctx context.Context, cfg reportstore.Config, log logging.Logger) (Archiver, error) {
			return reportstore.New(ctx, cfg, log)
		},
		newDrive: func(ctx context.Context, ts oauth2.TokenSource, log logging.Logger) (*gdrive.Exporter, error) {
			return gdrive.NewExporter(ctx, ts, log)
		},
		dotEnvFiles: []string{".env", ".env.secrets"},
	}
}

// Execute runs the command line and returns the process exit code.
func (a *App) Execute(ctx context.Context, args []string) int {
	cmd := a.NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(a.in)
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return triage.ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(a.errOut, "Error:", err)
	return triage.ExitFailure
}
