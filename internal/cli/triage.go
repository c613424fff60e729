package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/agentllm/agentllm/internal/jira"
	"github.com/agentllm/agentllm/internal/llm"
	"github.com/agentllm/agentllm/internal/reportstore"
	"github.com/agentllm/agentllm/internal/triage"
	"github.com/spf13/cobra"
)

type triageFlags struct {
	dryRun       bool
	apply        bool
	confidence   int
	jql          string
	jsonOutput   bool
	fieldMap     string
	model        string
	maxIssues    int
	reportBucket string
}

func (a *App) newTriageCmd(g *globalFlags) *cobra.Command {
	f := &triageFlags{}

	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Triage Jira issues and apply confident recommendations",
		Long: `Ask the model for team and component recommendations, apply those at or
above the confidence threshold and list the rest for manual review.

Exit codes: 0 success, 1 execution error or failed update, 2 manual review needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTriage(cmd, g, f)
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&f.dryRun, "dry-run", false, "preview changes without applying")
	fl.BoolVar(&f.apply, "apply", false, "apply high-confidence recommendations")
	fl.IntVar(&f.confidence, "confidence", 80, "minimum confidence for auto-apply (0-100)")
	fl.StringVar(&f.jql, "jql", "", "custom JQL filter")
	fl.BoolVar(&f.jsonOutput, "json-output", false, "print the report as JSON")
	fl.StringVar(&f.fieldMap, "field-map", "", "YAML file mapping recommendation fields to Jira fields")
	fl.StringVar(&f.model, "model", llm.DefaultModel, "Anthropic model")
	fl.IntVar(&f.maxIssues, "max-issues", triage.DefaultMaxIssues, "issues fetched into the prompt")
	fl.StringVar(&f.reportBucket, "report-bucket", "", "S3 bucket to archive the JSON report in")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "apply")
	cmd.MarkFlagsOneRequired("dry-run", "apply")

	return cmd
}

func (a *App) runTriage(cmd *cobra.Command, g *globalFlags, f *triageFlags) error {
	ctx := cmd.Context()
	log := a.logger.With("command", "triage")

	if err := triage.ValidateThreshold(f.confidence); err != nil {
		return err
	}

	var fields jira.FieldMap
	if f.fieldMap != "" {
		m, err := jira.LoadFieldMap(f.fieldMap)
		if err != nil {
			return err
		}
		fields = m
	}

	store, closeStore, err := a.openStore(ctx, g.dbPath, false)
	if err != nil {
		return err
	}
	defer closeStore()

	runner, err := a.newRunner(a.getenv("ANTHROPIC_API_KEY"), f.model, log)
	if err != nil {
		return err
	}

	applier := triage.NewApplier(store, a.jiraClients, fields, log)
	pipeline := triage.NewPipeline(store, runner, applier, log, triage.WithIssueSearch(a.jiraSearcher))

	opts := triage.Options{
		UserID:    g.userID,
		JQL:       f.jql,
		Threshold: f.confidence,
		DryRun:    f.dryRun,
		MaxIssues: f.maxIssues,
	}
	if !f.jsonOutput {
		opts.Echo = a.out
	}

	report, err := pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}

	if f.reportBucket != "" {
		a.archiveReport(cmd, f.reportBucket, report)
	}

	if f.jsonOutput {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printSummary(a.out, report, f.confidence, f.dryRun)
	}

	if code := triage.ExitCode(report); code != triage.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

// archiveReport never fails the run.
func (a *App) archiveReport(cmd *cobra.Command, bucket string, report *triage.Report) {
	ctx := cmd.Context()
	cfg := reportstore.Config{
		Bucket:    bucket,
		Region:    a.getenv("AGENTLLM_REPORT_REGION"),
		Endpoint:  a.getenv("AGENTLLM_REPORT_ENDPOINT"),
		AccessKey: a.getenv("AGENTLLM_REPORT_ACCESS_KEY"),
		SecretKey: a.getenv("AGENTLLM_REPORT_SECRET_KEY"),
	}
	archive, err := a.newArchive(ctx, cfg, a.logger)
	if err != nil {
		a.logger.Warn(ctx, "report archive unavailable", "error", err)
		return
	}
	if _, err := archive.Put(ctx, report); err != nil {
		a.logger.Warn(ctx, "report archive failed", "error", err)
	}
}

func printSummary(w io.Writer, r *triage.Report, threshold int, dryRun bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w)
	if !r.Success {
		fmt.Fprintf(w, "Triage failed: %s\n", r.Error)
	}
	fmt.Fprintln(w, "=== Triage Summary ===")
	fmt.Fprintf(w, "Total recommendations: %d\n", r.Total)
	fmt.Fprintf(w, "Auto-apply (>=%d%%): %d\n", threshold, r.AutoApply)
	fmt.Fprintf(w, "Manual review (<%d%%): %d\n", threshold, r.ManualReview)
	if !dryRun {
		fmt.Fprintf(w, "Applied successfully: %d\n", r.Applied)
		fmt.Fprintf(w, "Failed to apply: %d\n", r.Failed)
	}
	for _, fi := range r.FailedItems {
		fmt.Fprintf(w, "  failed %s %s: %s\n", fi.Ticket, fi.Field, fi.Reason)
	}
}
