package odp

import (
	"fmt"
	"strings"
	"time"
)

// Pagination is the offset/limit window of a search request.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// DefaultPagination returns the ODP default window.
func DefaultPagination() Pagination {
	return Pagination{Offset: 0, Limit: 25}
}

// Validate checks the window bounds.
func (p Pagination) Validate() error {
	if p.Offset < 0 {
		return fmt.Errorf("offset must be >= 0 (got %d)", p.Offset)
	}
	if p.Limit < 1 {
		return fmt.Errorf("limit must be >= 1 (got %d)", p.Limit)
	}
	return nil
}

// SearchPayload is the body of an ODP patent application search.
// Empty fields are pruned before sending.
type SearchPayload struct {
	Q            string     `json:"q,omitempty"`
	Fields       []string   `json:"fields,omitempty"`
	Filters      []string   `json:"filters,omitempty"`
	RangeFilters []string   `json:"rangeFilters,omitempty"`
	Sort         string     `json:"sort,omitempty"`
	Pagination   Pagination `json:"pagination"`
}

// NewSearchPayload returns a payload with default pagination.
func NewSearchPayload(query string) SearchPayload {
	return SearchPayload{Q: query, Pagination: DefaultPagination()}
}

// Filter formats a Filters clause from a field name and one or more
// values. Values are trimmed and joined CSV-style; an empty value set
// yields an empty clause, which pruning drops from the payload.
func Filter(field string, values ...string) string {
	v := csvParam(values)
	if v == "" {
		return ""
	}
	return field + " " + v
}

// BoolFilter formats a Filters clause over a boolean field. A nil
// value yields an empty clause.
func BoolFilter(field string, value *bool) string {
	v := boolParam(value)
	if v == "" {
		return ""
	}
	return field + " " + v
}

// DateRange formats a RangeFilters clause over an ISO date field.
func DateRange(field string, from, to time.Time) string {
	return fmt.Sprintf("%s %s %s", field, dateValue(from), dateValue(to))
}

// DateRangeISO formats a RangeFilters clause from pre-formatted ISO
// date strings, trimming surrounding whitespace.
func DateRangeISO(field, from, to string) string {
	return fmt.Sprintf("%s %s %s", field, dateParam(from), dateParam(to))
}

// PrunedMap serializes the payload to a mapping with empty values
// removed, as the ODP search endpoint rejects null and empty fields.
func (p SearchPayload) PrunedMap() map[string]any {
	raw := map[string]any{
		"q":            p.Q,
		"fields":       stringsToAny(p.Fields),
		"filters":      stringsToAny(p.Filters),
		"rangeFilters": stringsToAny(p.RangeFilters),
		"sort":         p.Sort,
		"pagination": map[string]any{
			"offset": p.Pagination.Offset,
			"limit":  p.Pagination.Limit,
		},
	}
	return prune(raw)
}

func stringsToAny(values []string) []any {
	if values == nil {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// prune removes nil, empty-string, empty-slice and empty-map values
// recursively. Zero and false are preserved.
func prune(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if pruned, keep := pruneValue(v); keep {
			out[k] = pruned
		}
	}
	return out
}

func pruneValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string:
		return val, val != ""
	case map[string]any:
		pruned := prune(val)
		return pruned, len(pruned) > 0
	case []any:
		pruned := make([]any, 0, len(val))
		for _, item := range val {
			if p, keep := pruneValue(item); keep {
				pruned = append(pruned, p)
			}
		}
		return pruned, len(pruned) > 0
	default:
		return val, true
	}
}

// csvParam joins values into a comma-separated query parameter,
// trimming whitespace and dropping empty items. Returns "" when
// nothing remains.
func csvParam(values []string) string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			cleaned = append(cleaned, v)
		}
	}
	return strings.Join(cleaned, ",")
}

// boolParam formats an optional boolean as "true"/"false", or "" for
// nil.
func boolParam(v *bool) string {
	if v == nil {
		return ""
	}
	if *v {
		return "true"
	}
	return "false"
}

// dateParam trims a date string for use as a query parameter.
func dateParam(s string) string {
	return strings.TrimSpace(s)
}

// dateValue formats a time as the ISO date the ODP API expects.
func dateValue(t time.Time) string {
	return t.Format("2006-01-02")
}
