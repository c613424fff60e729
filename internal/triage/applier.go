package triage

import (
	"context"
	"net/http"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/credentials"
	"github.com/agentllm/agentllm/internal/jira"
	"github.com/agentllm/agentllm/internal/logging"
)

// FailureReason says why a recommendation was not applied.
type FailureReason string

const (
	ReasonNoCredential  FailureReason = "no_credential"
	ReasonClientError   FailureReason = "client_error"
	ReasonNoValidFields FailureReason = "no_valid_fields"
	ReasonUpdateFailed  FailureReason = "update_failed"
)

// FailedItem is a recommendation that was not applied.
type FailedItem struct {
	Recommendation
	Reason FailureReason `json:"reason"`
	Error  string        `json:"error,omitempty"`
}

// ApplyResult partitions the attempted recommendations.
type ApplyResult struct {
	Applied []Recommendation `json:"applied"`
	Failed  []FailedItem     `json:"failed"`
}

// IssueUpdater is the single remote call the applier makes per ticket.
type IssueUpdater interface {
	UpdateIssue(ctx context.Context, key string, fields map[string]any) error
}

// CredentialGetter is the read half of credentials.Store.
type CredentialGetter interface {
	Get(ctx context.Context, provider, userID string) (*credentials.Credential, error)
}

// ClientFactory builds the Jira client from a stored credential.
type ClientFactory func(cred *credentials.Credential) (IssueUpdater, error)

// JiraClientFactory builds a *jira.Client against the credential's server.
func JiraClientFactory(httpClient *http.Client) ClientFactory {
	return func(cred *credentials.Credential) (IssueUpdater, error) {
		var opts []jira.ClientOption
		if httpClient != nil {
			opts = append(opts, jira.WithHTTPClient(httpClient))
		}
		return jira.NewClient(cred.ServerURL, cred.AccessToken, opts...)
	}
}

// Applier pushes recommendations to Jira, one update per ticket.
type Applier struct {
	creds   CredentialGetter
	factory ClientFactory
	fields  jira.FieldMap
	log     logging.Logger
}

func NewApplier(creds CredentialGetter, factory ClientFactory, fields jira.FieldMap, log logging.Logger) *Applier {
	if fields == nil {
		fields = jira.DefaultFieldMap()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Applier{creds: creds, factory: factory, fields: fields, log: log}
}

// Apply never returns an error: every input ends up either applied or
// failed with a reason. A missing credential or client fails everything
// without any remote call.
func (a *Applier) Apply(ctx context.Context, recs []Recommendation, userID string) ApplyResult {
	res := ApplyResult{
		Applied: []Recommendation{},
		Failed:  []FailedItem{},
	}

	cred, err := a.creds.Get(ctx, common.ProviderJira, userID)
	if err != nil || cred == nil {
		a.log.Error(ctx, "no jira credential", "user_id", userID, "error", err)
		res.Failed = failAll(res.Failed, recs, ReasonNoCredential, err)
		return res
	}

	client, err := a.factory(cred)
	if err != nil {
		a.log.Error(ctx, "failed to build jira client", "error", err)
		res.Failed = failAll(res.Failed, recs, ReasonClientError, err)
		return res
	}

	order, byTicket := groupByTicket(recs)
	for _, ticket := range order {
		updates := byTicket[ticket]
		log := a.log.With("ticket", ticket)

		fields := make(map[string]any, len(updates))
		for _, u := range updates {
			id, payload, ok := a.fields.Translate(u.Field, u.Recommended)
			if !ok {
				log.Debug(ctx, "dropping unmapped field", "field", u.Field)
				continue
			}
			fields[id] = payload
		}

		if len(fields) == 0 {
			log.Warn(ctx, "no valid fields to update")
			res.Failed = failAll(res.Failed, updates, ReasonNoValidFields, nil)
			continue
		}

		log.Info(ctx, "updating issue", "fields", len(fields), "recommendations", len(updates))
		if err := client.UpdateIssue(ctx, ticket, fields); err != nil {
			log.Error(ctx, "failed to update issue", "error", err)
			res.Failed = failAll(res.Failed, updates, ReasonUpdateFailed, err)
			continue
		}
		res.Applied = append(res.Applied, updates...)
	}

	a.log.Info(ctx, "apply finished", "applied", len(res.Applied), "failed", len(res.Failed))
	return res
}

func groupByTicket(recs []Recommendation) ([]string, map[string][]Recommendation) {
	var order []string
	by := make(map[string][]Recommendation)
	for _, r := range recs {
		if _, ok := by[r.Ticket]; !ok {
			order = append(order, r.Ticket)
		}
		by[r.Ticket] = append(by[r.Ticket], r)
	}
	return order, by
}

func failAll(dst []FailedItem, recs []Recommendation, reason FailureReason, err error) []FailedItem {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	for _, r := range recs {
		dst = append(dst, FailedItem{Recommendation: r, Reason: reason, Error: msg})
	}
	return dst
}
