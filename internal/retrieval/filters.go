// Package retrieval turns chat queries into retrieved invoice context:
// heuristic metadata filters plus vector similarity search.
package retrieval

import (
	"regexp"
	"strings"

	"github.com/hyperjump/seisan/pkg/utils"
)

// employeeNamePatterns capture a run of capitalized words following a trigger
// word, matched against the original-cased query so multi-word names like
// "John Smith" survive intact. The first matching pattern wins.
var employeeNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:\bfor)\s+((?:[A-Z][a-z]+)(?:\s+[A-Z][a-z]+)*)`),
	regexp.MustCompile(`(?i:\bby)\s+((?:[A-Z][a-z]+)(?:\s+[A-Z][a-z]+)*)`),
	regexp.MustCompile(`(?i:\bemployee)\s+((?:[A-Z][a-z]+)(?:\s+[A-Z][a-z]+)*)`),
}

// employeePatterns are the lowercase fallback for queries typed without
// capitalization; without case to delimit the name they capture a single word.
var employeePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bfor\s+([a-z]+)`),
	regexp.MustCompile(`\bby\s+([a-z]+)`),
	regexp.MustCompile(`\bemployee\s+([a-z]+)`),
}

// statusKeyword maps a query keyword to the status filter it implies.
// Checked in order; the first present keyword wins.
type statusKeyword struct {
	keyword string
	status  string
}

var statusKeywords = []statusKeyword{
	{"approved", "Fully Reimbursed"},
	{"declined", "Declined"},
	{"rejected", "Declined"},
	{"partial", "Partially Reimbursed"},
	{"pending", "Pending Analysis"},
}

// ExtractFilters derives exact-match metadata filters from a free-text
// query. Best-effort keyword matching; an unrecognized query yields an
// empty map, never an error.
func ExtractFilters(query string) map[string]string {
	filters := make(map[string]string)
	lower := strings.ToLower(query)

	for _, p := range employeeNamePatterns {
		if m := p.FindStringSubmatch(query); m != nil {
			filters["employee_name"] = strings.TrimSpace(m[1])
			break
		}
	}
	if _, ok := filters["employee_name"]; !ok {
		for _, p := range employeePatterns {
			m := p.FindStringSubmatch(lower)
			if m == nil {
				continue
			}
			name := strings.TrimSpace(m[1])
			if len(name) > 1 {
				filters["employee_name"] = utils.TitleCase(name)
			}
			break
		}
	}

	for _, sk := range statusKeywords {
		if strings.Contains(lower, sk.keyword) {
			filters["status"] = sk.status
			break
		}
	}
	return filters
}
