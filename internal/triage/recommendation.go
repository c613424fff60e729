// Package triage turns a model's free-text triage answer into Jira updates:
// parse the recommendation table, split it by confidence and apply the
// confident part.
package triage

// Action values in the recommendation table. Only ActionNew is applied.
const (
	ActionNew    = "NEW"
	ActionAppend = "APPEND"
	ActionSkip   = "SKIP"
)

// Recommendation is one proposed field change for one ticket.
type Recommendation struct {
	Ticket      string `json:"ticket"`
	Summary     string `json:"summary"`
	Field       string `json:"field"`
	Current     string `json:"current"`
	Recommended string `json:"recommended"`
	Confidence  int    `json:"confidence"`
	Action      string `json:"action"`
}
