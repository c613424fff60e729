package triage

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/agentllm/agentllm/internal/credentials"
	"github.com/agentllm/agentllm/internal/jira"
)

type fakeCreds struct {
	cred         *credentials.Credential
	err          error
	calls        int
	LastProvider string
	LastUserID   string
}

func (f *fakeCreds) Get(_ context.Context, provider, userID string) (*credentials.Credential, error) {
	f.calls++
	f.LastProvider, f.LastUserID = provider, userID
	return f.cred, f.err
}

func jiraCred() *fakeCreds {
	return &fakeCreds{cred: &credentials.Credential{AccessToken: "pat", ServerURL: "https://jira.example"}}
}

type updateCall struct {
	Key    string
	Fields map[string]any
}

// fakeJira records UpdateIssue calls and fails the keys listed in failOn.
type fakeJira struct {
	mu     sync.Mutex
	calls  []updateCall
	failOn map[string]error

	issues    []jira.Issue
	searchErr error
	LastJQL   string
	LastLimit int
}

func (f *fakeJira) UpdateIssue(_ context.Context, key string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, updateCall{Key: key, Fields: fields})
	if err, ok := f.failOn[key]; ok {
		return err
	}
	return nil
}

func (f *fakeJira) SearchIssues(_ context.Context, jql string, limit int) ([]jira.Issue, error) {
	f.LastJQL, f.LastLimit = jql, limit
	return f.issues, f.searchErr
}

func (f *fakeJira) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func factoryFor(j *fakeJira) (ClientFactory, *int) {
	n := 0
	return func(*credentials.Credential) (IssueUpdater, error) {
		n++
		return j, nil
	}, &n
}

// fakeRunner yields chunks then, if err is set, the error.
type fakeRunner struct {
	chunks     []string
	err        error
	calls      int
	LastPrompt string
}

func (f *fakeRunner) Run(_ context.Context, prompt string) iter.Seq2[string, error] {
	f.calls++
	f.LastPrompt = prompt
	return func(yield func(string, error) bool) {
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

var errBoom = errors.New("boom")
