package triage

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentllm/agentllm/internal/logging"
)

// TableHeader must appear verbatim in the model output.
const TableHeader = "| Ticket | Summary | Field | Current | Recommended | Confidence | Action |"

const tableColumns = 7

var confidenceRe = regexp.MustCompile(`(\d+)%`)

// Parser extracts recommendations from model output.
type Parser struct {
	log logging.Logger
}

func NewParser(log logging.Logger) *Parser {
	if log == nil {
		log = logging.Nop()
	}
	return &Parser{log: log}
}

// Parse reads the first recommendation table in text.
//
// Rows after the header and separator are read until the first blank line
// or line not starting with "|". Rows with fewer than seven cells are
// skipped. An empty ticket cell continues the previous ticket. Only NEW
// rows are kept; a confidence cell without NN% counts as 0.
func (p *Parser) Parse(ctx context.Context, text string) []Recommendation {
	start := strings.Index(text, TableHeader)
	if start < 0 {
		p.log.Warn(ctx, "no triage table found in response", "response", logging.SafeContent(ctx, p.log, text))
		return nil
	}

	lines := strings.Split(text[start:], "\n")
	if len(lines) <= 2 {
		return nil
	}

	var (
		recs          []Recommendation
		currentTicket string
	)
	for _, line := range lines[2:] {
		if strings.TrimSpace(line) == "" || !strings.HasPrefix(line, "|") {
			break
		}

		cells := splitRow(line)
		if len(cells) < tableColumns {
			continue
		}

		ticket := cells[0]
		field, confidence, action := cells[2], cells[5], cells[6]

		if ticket != "" {
			currentTicket = ticket
		} else if currentTicket != "" {
			ticket = currentTicket
		} else {
			continue
		}

		if !strings.EqualFold(action, ActionNew) {
			p.log.Debug(ctx, "skipping row", "ticket", ticket, "field", field, "action", action)
			continue
		}

		recs = append(recs, Recommendation{
			Ticket:      ticket,
			Summary:     cells[1],
			Field:       strings.ToLower(field),
			Current:     cells[3],
			Recommended: cells[4],
			Confidence:  parseConfidence(confidence),
			Action:      ActionNew,
		})
	}

	p.log.Info(ctx, "parsed recommendations", "count", len(recs))
	return recs
}

// splitRow drops the segments outside the outer pipes and trims the rest.
func splitRow(line string) []string {
	parts := strings.Split(line, "|")
	if len(parts) < 2 {
		return nil
	}
	parts = parts[1 : len(parts)-1]
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseConfidence(cell string) int {
	m := confidenceRe.FindStringSubmatch(cell)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
