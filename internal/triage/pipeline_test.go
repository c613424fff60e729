package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/credentials"
	"github.com/agentllm/agentllm/internal/jira"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioTable has three NEW rows at 90/75/60 and one SKIP row.
var scenarioTable = []string{
	"Analysis of the queue:\n\n",
	TableHeader + "\n",
	"|---|---|---|---|---|---|---|\n",
	"| RHIDP-1 | Login broken | team | - | Team A | 90% | NEW |\n",
	"| RHIDP-2 | Slow page | components | - | ui | 75% | NEW |\n",
	"| RHIDP-3 | Crash | team | - | Team C | 60% | NEW |\n",
	"| RHIDP-4 | Typo | team | Docs | Docs | 95% | SKIP |\n",
	"\nDone.",
}

type harness struct {
	creds    *fakeCreds
	jira     *fakeJira
	runner   *fakeRunner
	pipeline *Pipeline
	states   []State
}

func newHarness(chunks ...string) *harness {
	h := &harness{
		creds:  jiraCred(),
		jira:   &fakeJira{},
		runner: &fakeRunner{chunks: chunks},
	}
	factory, _ := factoryFor(h.jira)
	applier := NewApplier(h.creds, factory, nil, nil)
	h.pipeline = NewPipeline(h.creds, h.runner, applier, nil,
		WithObserver(func(s State) { h.states = append(h.states, s) }))
	return h
}

func TestRun_EndToEndDryRun(t *testing.T) {
	h := newHarness(scenarioTable...)
	var echo bytes.Buffer

	r, err := h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 80, DryRun: true, Echo: &echo})
	require.NoError(t, err)

	assert.True(t, r.Success)
	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 1, r.AutoApply)
	assert.Equal(t, 2, r.ManualReview)
	assert.Equal(t, 0, r.Applied)
	assert.Equal(t, 0, r.Failed)
	require.Len(t, r.ManualReviewItems, 2)
	assert.Equal(t, 75, r.ManualReviewItems[0].Confidence)
	assert.Equal(t, 60, r.ManualReviewItems[1].Confidence)
	assert.Equal(t, 0, h.jira.callCount())

	assert.Equal(t, strings.Join(scenarioTable, ""), echo.String(), "chunks echoed in order")
	assert.Equal(t, []State{
		StateFetchingCredential, StateRunningModel, StateParsing, StateClassifying, StateDryRun, StateDone,
	}, h.states)
	assert.Equal(t, ExitManualReview, ExitCode(r))
}

func TestRun_EndToEndApply(t *testing.T) {
	h := newHarness(scenarioTable...)

	r, err := h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 80})
	require.NoError(t, err)

	assert.Equal(t, 1, r.Applied)
	assert.Equal(t, 0, r.Failed)
	require.Len(t, r.AppliedItems, 1)
	assert.Equal(t, "RHIDP-1", r.AppliedItems[0].Ticket)
	require.Equal(t, 1, h.jira.callCount())
	assert.Equal(t, "RHIDP-1", h.jira.calls[0].Key)
	assert.Equal(t, []State{
		StateFetchingCredential, StateRunningModel, StateParsing, StateClassifying, StateApplying, StateDone,
	}, h.states)
	assert.Equal(t, ExitManualReview, ExitCode(r))
}

func TestRun_AllConfidentAppliedExitsZero(t *testing.T) {
	h := newHarness(TableHeader+"\n", "|-|\n", "| A-1 | s | team | - | T | 95% | NEW |\n")

	r, err := h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 80})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Applied)
	assert.Equal(t, ExitOK, ExitCode(r))
}

func TestRun_ApplyFailureExitsOne(t *testing.T) {
	h := newHarness(TableHeader+"\n", "|-|\n", "| A-1 | s | team | - | T | 95% | NEW |\n")
	h.jira.failOn = map[string]error{"A-1": errBoom}

	r, err := h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 80})
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, ReasonUpdateFailed, r.FailedItems[0].Reason)
	assert.Equal(t, ExitFailure, ExitCode(r))
}

func TestRun_NothingAboveThresholdSkipsApplying(t *testing.T) {
	h := newHarness(TableHeader+"\n", "|-|\n", "| A-1 | s | team | - | T | 10% | NEW |\n")

	r, err := h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 80})
	require.NoError(t, err)
	assert.NotContains(t, h.states, StateApplying)
	assert.Equal(t, 0, h.jira.callCount())
	assert.Equal(t, ExitManualReview, ExitCode(r))
}

func TestRun_MissingCredentialIsFatalBeforeModel(t *testing.T) {
	h := newHarness(scenarioTable...)
	h.creds.cred = nil

	r, err := h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 80})
	require.ErrorIs(t, err, common.ErrMissingCredential)
	assert.Nil(t, r)
	assert.Equal(t, 0, h.runner.calls, "model must not run")
	assert.Equal(t, []State{StateFetchingCredential, StateError}, h.states)
}

func TestRun_CredentialLookupError(t *testing.T) {
	h := newHarness(scenarioTable...)
	h.creds.err = errBoom

	_, err := h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 80})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, h.runner.calls)
}

func TestRun_StreamErrorEndsInError(t *testing.T) {
	h := newHarness(scenarioTable[:4]...)
	h.runner.err = errors.New("connection reset")
	var echo bytes.Buffer

	r, err := h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 80, Echo: &echo})
	require.NoError(t, err)

	assert.False(t, r.Success)
	assert.Equal(t, "connection reset", r.Error)
	assert.Equal(t, 0, r.Total)
	assert.Equal(t, 0, r.AutoApply)
	assert.Empty(t, r.Recommendations)
	assert.Equal(t, 0, h.jira.callCount())
	assert.Equal(t, StateError, h.states[len(h.states)-1])
	assert.NotContains(t, h.states, StateParsing)
	assert.Equal(t, ExitFailure, ExitCode(r))
	assert.NotEmpty(t, echo.String(), "chunks before the error were still echoed")
}

func TestRun_NoTableIsSuccessfulEmptyReport(t *testing.T) {
	h := newHarness("Nothing to triage today.")

	r, err := h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 80})
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, 0, r.Total)
	assert.Equal(t, ExitOK, ExitCode(r))
	assert.Equal(t, StateDone, h.states[len(h.states)-1])
}

func TestRun_InvalidThreshold(t *testing.T) {
	h := newHarness()
	_, err := h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 150})
	require.Error(t, err)
	assert.Equal(t, 0, h.creds.calls)
}

func TestRun_IssueSearchFeedsPrompt(t *testing.T) {
	h := newHarness("no table")
	h.jira.issues = []jira.Issue{{Key: "RHIDP-9", Fields: jira.IssueFields{Summary: "Broken SSO"}}}
	h.pipeline.searcher = func(*credentials.Credential) (IssueSearcher, error) { return h.jira, nil }

	_, err := h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 80})
	require.NoError(t, err)
	assert.Equal(t, DefaultJQL, h.jira.LastJQL)
	assert.Equal(t, DefaultMaxIssues, h.jira.LastLimit)
	assert.Contains(t, h.runner.LastPrompt, "Triage all issues in the default queue")
	assert.Contains(t, h.runner.LastPrompt, "RHIDP-9: Broken SSO")

	_, err = h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 80, JQL: "project = X", MaxIssues: 5})
	require.NoError(t, err)
	assert.Equal(t, "project = X", h.jira.LastJQL)
	assert.Equal(t, 5, h.jira.LastLimit)
	assert.Contains(t, h.runner.LastPrompt, "Triage all issues matching this JQL filter: project = X")
}

func TestRun_IssueSearchFailure(t *testing.T) {
	h := newHarness(scenarioTable...)
	h.jira.searchErr = errBoom
	h.pipeline.searcher = func(*credentials.Credential) (IssueSearcher, error) { return h.jira, nil }

	r, err := h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 80})
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "search issues")
	assert.Equal(t, 0, h.runner.calls)
}

func TestReport_JSONShape(t *testing.T) {
	h := newHarness(scenarioTable...)
	r, err := h.pipeline.Run(context.Background(), Options{UserID: "bot", Threshold: 80, DryRun: true})
	require.NoError(t, err)

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, k := range []string{"success", "total", "auto_apply", "manual_review", "applied", "failed",
		"applied_items", "failed_items", "manual_review_items", "recommendations"} {
		assert.Contains(t, m, k)
	}
	assert.NotContains(t, m, "error")
	assert.Equal(t, []any{}, m["applied_items"])
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(&Report{Success: false}))
	assert.Equal(t, ExitFailure, ExitCode(&Report{Success: true, Failed: 1, ManualReview: 3}))
	assert.Equal(t, ExitManualReview, ExitCode(&Report{Success: true, ManualReview: 1}))
	assert.Equal(t, ExitOK, ExitCode(&Report{Success: true, Applied: 4}))
	assert.Equal(t, ExitOK, ExitCode(&Report{Success: true}))
}
