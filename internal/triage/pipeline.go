package triage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/credentials"
	"github.com/agentllm/agentllm/internal/jira"
	"github.com/agentllm/agentllm/internal/logging"
)

// State is a step of a triage run.
type State string

const (
	StateFetchingCredential State = "FETCHING_CREDENTIAL"
	StateRunningModel       State = "RUNNING_MODEL"
	StateParsing            State = "PARSING"
	StateClassifying        State = "CLASSIFYING"
	StateDryRun             State = "DRY_RUN"
	StateApplying           State = "APPLYING"
	StateDone               State = "DONE"
	StateError              State = "ERROR"
)

// DefaultMaxIssues caps the issues fetched into the prompt.
const DefaultMaxIssues = 50

// ModelRunner streams the model's answer to prompt as text chunks.
type ModelRunner interface {
	Run(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// IssueSearcher fetches the issues described to the model.
type IssueSearcher interface {
	SearchIssues(ctx context.Context, jql string, limit int) ([]jira.Issue, error)
}

// SearcherFactory builds an IssueSearcher from the Jira credential.
type SearcherFactory func(cred *credentials.Credential) (IssueSearcher, error)

// JiraSearcherFactory returns a factory backed by *jira.Client.
func JiraSearcherFactory(opts ...jira.ClientOption) SearcherFactory {
	return func(cred *credentials.Credential) (IssueSearcher, error) {
		return jira.NewClient(cred.ServerURL, cred.AccessToken, opts...)
	}
}

// Options are per run.
type Options struct {
	UserID    string
	JQL       string
	Threshold int
	DryRun    bool
	MaxIssues int
	// Echo receives model chunks as they arrive. Nil discards them.
	Echo io.Writer
}

// Report summarizes a run. It is the JSON document printed with
// --json-output.
type Report struct {
	Success           bool             `json:"success"`
	Error             string           `json:"error,omitempty"`
	DryRun            bool             `json:"dry_run"`
	Threshold         int              `json:"threshold"`
	Total             int              `json:"total"`
	AutoApply         int              `json:"auto_apply"`
	ManualReview      int              `json:"manual_review"`
	Applied           int              `json:"applied"`
	Failed            int              `json:"failed"`
	AppliedItems      []Recommendation `json:"applied_items"`
	FailedItems       []FailedItem     `json:"failed_items"`
	ManualReviewItems []Recommendation `json:"manual_review_items"`
	Recommendations   []Recommendation `json:"recommendations"`
}

func newReport(opts Options) *Report {
	return &Report{
		Success:           true,
		DryRun:            opts.DryRun,
		Threshold:         opts.Threshold,
		AppliedItems:      []Recommendation{},
		FailedItems:       []FailedItem{},
		ManualReviewItems: []Recommendation{},
		Recommendations:   []Recommendation{},
	}
}

// Exit codes of the triage command.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitManualReview = 2
)

// ExitCode maps a report to the process exit code: 1 on execution error or
// any failed item, 2 when something needs manual review, 0 otherwise.
func ExitCode(r *Report) int {
	switch {
	case r == nil || !r.Success:
		return ExitFailure
	case r.Failed > 0:
		return ExitFailure
	case r.ManualReview > 0:
		return ExitManualReview
	default:
		return ExitOK
	}
}

// Pipeline runs credential lookup, model, parse, classify and apply.
type Pipeline struct {
	creds    CredentialGetter
	runner   ModelRunner
	parser   *Parser
	applier  *Applier
	searcher SearcherFactory
	observe  func(State)
	log      logging.Logger
}

type PipelineOption func(*Pipeline)

// WithIssueSearch enables fetching issues into the prompt.
func WithIssueSearch(f SearcherFactory) PipelineOption {
	return func(p *Pipeline) { p.searcher = f }
}

// WithObserver is called on every state transition.
func WithObserver(fn func(State)) PipelineOption {
	return func(p *Pipeline) { p.observe = fn }
}

func NewPipeline(creds CredentialGetter, runner ModelRunner, applier *Applier, log logging.Logger, opts ...PipelineOption) *Pipeline {
	if log == nil {
		log = logging.Nop()
	}
	p := &Pipeline{
		creds:   creds,
		runner:  runner,
		parser:  NewParser(log),
		applier: applier,
		log:     log,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pipeline) enter(ctx context.Context, s State) {
	p.log.Debug(ctx, "triage state", "state", string(s))
	if p.observe != nil {
		p.observe(s)
	}
}

// Run executes one triage pass.
//
// A missing Jira credential is returned as common.ErrMissingCredential
// before the model runs. Failures after that point are reported in the
// returned Report with Success=false.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	if err := ValidateThreshold(opts.Threshold); err != nil {
		return nil, err
	}
	report := newReport(opts)
	log := p.log.With("user_id", opts.UserID)

	p.enter(ctx, StateFetchingCredential)
	cred, err := p.creds.Get(ctx, common.ProviderJira, opts.UserID)
	if err != nil {
		p.enter(ctx, StateError)
		return nil, fmt.Errorf("fetch jira credential: %w", err)
	}
	if cred == nil {
		p.enter(ctx, StateError)
		return nil, fmt.Errorf("%w: user %q has no jira token", common.ErrMissingCredential, opts.UserID)
	}

	p.enter(ctx, StateRunningModel)
	issues, err := p.fetchIssues(ctx, cred, opts)
	if err != nil {
		return p.fail(ctx, report, err), nil
	}
	prompt := BuildPrompt(opts.JQL, issues)
	log.Info(ctx, "running triage", "jql", opts.JQL, "issues", len(issues))

	text, err := p.stream(ctx, prompt, opts.Echo)
	if err != nil {
		log.Error(ctx, "model run failed", "error", err)
		return p.fail(ctx, report, err), nil
	}
	log.Debug(ctx, "model response", "text", logging.SafeContent(ctx, log, text))

	p.enter(ctx, StateParsing)
	recs := p.parser.Parse(ctx, text)
	if len(recs) == 0 {
		log.Warn(ctx, "no recommendations found")
		p.enter(ctx, StateDone)
		return report, nil
	}
	report.Total = len(recs)
	report.Recommendations = recs

	p.enter(ctx, StateClassifying)
	cls := Classify(recs, opts.Threshold)
	report.AutoApply = len(cls.AutoApply)
	report.ManualReview = len(cls.ManualReview)
	report.ManualReviewItems = cls.ManualReview
	log.Info(ctx, "classified", "auto_apply", report.AutoApply, "manual_review", report.ManualReview, "threshold", opts.Threshold)

	if opts.DryRun {
		p.enter(ctx, StateDryRun)
		log.Info(ctx, "dry run, not applying", "would_apply", report.AutoApply)
		p.enter(ctx, StateDone)
		return report, nil
	}

	if len(cls.AutoApply) > 0 {
		p.enter(ctx, StateApplying)
		res := p.applier.Apply(ctx, cls.AutoApply, opts.UserID)
		report.Applied = len(res.Applied)
		report.Failed = len(res.Failed)
		report.AppliedItems = res.Applied
		report.FailedItems = res.Failed
	}

	p.enter(ctx, StateDone)
	return report, nil
}

func (p *Pipeline) fetchIssues(ctx context.Context, cred *credentials.Credential, opts Options) ([]jira.Issue, error) {
	if p.searcher == nil {
		return nil, nil
	}
	s, err := p.searcher(cred)
	if err != nil {
		return nil, fmt.Errorf("build jira client: %w", err)
	}
	jql := opts.JQL
	if jql == "" {
		jql = DefaultJQL
	}
	limit := opts.MaxIssues
	if limit <= 0 {
		limit = DefaultMaxIssues
	}
	issues, err := s.SearchIssues(ctx, jql, limit)
	if err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}
	return issues, nil
}

// stream echoes each chunk in order and returns the concatenation.
func (p *Pipeline) stream(ctx context.Context, prompt string, echo io.Writer) (string, error) {
	var b strings.Builder
	for chunk, err := range p.runner.Run(ctx, prompt) {
		if err != nil {
			return "", err
		}
		if chunk == "" {
			continue
		}
		if echo != nil {
			if _, werr := io.WriteString(echo, chunk); werr != nil {
				return "", fmt.Errorf("echo model output: %w", werr)
			}
		}
		b.WriteString(chunk)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// fail resets the counts and marks the report unsuccessful.
func (p *Pipeline) fail(ctx context.Context, r *Report, err error) *Report {
	p.enter(ctx, StateError)
	out := newReport(Options{DryRun: r.DryRun, Threshold: r.Threshold})
	out.Success = false
	out.Error = err.Error()
	if errors.Is(err, context.Canceled) {
		out.Error = "cancelled"
	}
	return out
}
