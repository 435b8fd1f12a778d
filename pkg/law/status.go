package law

import "strings"

// StatusRules maps display-name keywords to a node status. The table is
// data, not code: jurisdictions with unusual drafting conventions supply
// their own table instead of subclassing anything. Matching is
// case-insensitive substring search over the display name.
//
// The scan is a heuristic. A section that merely discusses the word
// "repealed" is a known false positive, accepted as a limitation.
type StatusRules map[string]string

// DefaultStatusRules covers the keyword set shared by most corpora.
var DefaultStatusRules = StatusRules{
	"REPEALED":     StatusReserved,
	"RESERVED":     StatusReserved,
	"TRANSFERRED":  StatusReserved,
	"OMITTED":      StatusReserved,
	"DELETED":      StatusReserved,
	"EXPIRED":      StatusReserved,
	"SUPERSEDED":   StatusReserved,
	"REDESIGNATED": StatusReserved,
}

// Classify returns the status for a display name, or "" when no keyword
// matches.
func (r StatusRules) Classify(name string) string {
	if len(r) == 0 || name == "" {
		return ""
	}
	upper := strings.ToUpper(name)
	for keyword, status := range r {
		if strings.Contains(upper, strings.ToUpper(keyword)) {
			return status
		}
	}
	return ""
}

// Extend copies the rule table and adds jurisdiction-specific keywords.
func (r StatusRules) Extend(keywords map[string]string) StatusRules {
	out := make(StatusRules, len(r)+len(keywords))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range keywords {
		out[k] = v
	}
	return out
}
