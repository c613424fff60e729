package triage

import (
	"fmt"
	"strings"

	"github.com/agentllm/agentllm/internal/jira"
)

// DefaultJQL selects the untriaged queue when no filter is given.
const DefaultJQL = `status = New AND (component is EMPTY OR Team is EMPTY) ORDER BY created DESC`

// SystemPrompt fixes the output format the parser depends on.
const SystemPrompt = `You are a Jira triage assistant. For each issue, recommend values for the
"team" and "components" fields.

Answer with exactly one markdown table using this header, verbatim:

` + TableHeader + `
|--------|---------|-------|---------|-------------|------------|--------|

Rules:
- One row per field. Leave Ticket and Summary empty on follow-up rows for the same ticket.
- Field is "team" or "components". Several components are comma separated.
- Confidence is an integer percentage such as 85%.
- Action is NEW when the field should change, APPEND when the value is already
  present, SKIP when no change is warranted.
- End the table with a blank line. Do not put anything else inside the table.`

// BuildPrompt is the user message for one triage run.
func BuildPrompt(jql string, issues []jira.Issue) string {
	var b strings.Builder
	if jql != "" {
		fmt.Fprintf(&b, "Triage all issues matching this JQL filter: %s\n", jql)
	} else {
		b.WriteString("Triage all issues in the default queue\n")
	}

	if len(issues) == 0 {
		return b.String()
	}

	b.WriteString("\nIssues:\n")
	for _, is := range issues {
		fmt.Fprintf(&b, "\n### %s: %s\n", is.Key, is.Fields.Summary)
		if len(is.Fields.Components) > 0 {
			names := make([]string, 0, len(is.Fields.Components))
			for _, c := range is.Fields.Components {
				names = append(names, c.Name)
			}
			fmt.Fprintf(&b, "Components: %s\n", strings.Join(names, ", "))
		}
		if d := strings.TrimSpace(is.Fields.Description); d != "" {
			b.WriteString(truncate(d, 2000))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
