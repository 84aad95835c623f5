package query

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/codemate/internal/storage"
	"github.com/dshills/codemate/pkg/types"
)

// ErrInvalidQuery is returned for filters whose value cannot be
// interpreted, such as a malformed date or limit.
var ErrInvalidQuery = errors.New("invalid query")

// DefaultLimit is used when a query carries no limit filter.
const DefaultLimit = 10

// Query is a parsed search request.
type Query struct {
	// Text is the free-text part, the input to vector and FTS search.
	Text    string
	Filters storage.Filters
	Limit   int
	// MatchesNone is set when repeated filters intersect to the empty
	// set (lang:rust lang:go). The query is valid but cannot match.
	MatchesNone bool
}

// Parse parses the DSL into a query. Unknown keys and bare words become
// free text.
func Parse(input string) (*Query, error) {
	q := &Query{Limit: DefaultLimit}

	// Repeated keys intersect; values within one key are a union.
	sets := make(map[string][]map[string]bool)
	var freeText []string

	for _, term := range tokenize(input) {
		key, value, ok := splitFilter(term)
		if !ok {
			freeText = append(freeText, term)
			continue
		}
		switch key {
		case "lang", "author", "file", "path", "type":
			sets[key] = append(sets[key], csvSet(key, value))
		case "in":
			q.Filters.Branch = firstCSV(value)
		case "after", "before":
			at, err := parseDate(value)
			if err != nil {
				return nil, err
			}
			if key == "after" {
				q.Filters.After = &at
			} else {
				q.Filters.Before = &at
			}
		case "limit":
			limit, err := strconv.Atoi(value)
			if err != nil || limit <= 0 {
				return nil, fmt.Errorf("%w: limit %q must be a positive integer", ErrInvalidQuery, value)
			}
			q.Limit = limit
		default:
			// Unknown key: the whole term is free text.
			freeText = append(freeText, term)
		}
	}

	q.Text = strings.Join(freeText, " ")
	q.Filters.Languages = q.intersect(sets["lang"])
	q.Filters.Authors = q.intersect(sets["author"])
	q.Filters.FileGlobs = q.intersect(sets["file"])
	q.Filters.PathGlobs = q.intersect(sets["path"])
	q.Filters.Kinds = q.intersect(sets["type"])
	return q, nil
}

// tokenize splits on whitespace while honoring double quotes, so
// author:"Jane Doe" is one term.
func tokenize(input string) []string {
	var terms []string
	var current strings.Builder
	inQuote := false

	flush := func() {
		if current.Len() > 0 {
			terms = append(terms, current.String())
			current.Reset()
		}
	}
	for _, r := range input {
		switch {
		case r == '"':
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return terms
}

// splitFilter splits key:value. Terms with no colon, an empty key, or
// an empty value are not filters.
func splitFilter(term string) (string, string, bool) {
	idx := strings.Index(term, ":")
	if idx <= 0 || idx == len(term)-1 {
		return "", "", false
	}
	return strings.ToLower(term[:idx]), term[idx+1:], true
}

// csvSet expands a CSV value list into a set, canonicalizing language
// aliases so lang:ts and lang:typescript agree.
func csvSet(key, value string) map[string]bool {
	set := make(map[string]bool)
	for _, v := range strings.Split(value, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if key == "lang" {
			if lang := types.ParseLanguage(v); lang != types.LanguageUnknown {
				v = string(lang)
			}
		}
		set[v] = true
	}
	return set
}

func firstCSV(value string) string {
	if idx := strings.Index(value, ","); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}

// intersect folds repeated-key value sets into a sorted slice. A nil
// result means the key was never given. An empty intersection flags
// the whole query as matching nothing.
func (q *Query) intersect(sets []map[string]bool) []string {
	if len(sets) == 0 {
		return nil
	}
	result := sets[0]
	for _, set := range sets[1:] {
		next := make(map[string]bool)
		for v := range result {
			if set[v] {
				next[v] = true
			}
		}
		result = next
	}
	if len(result) == 0 {
		q.MatchesNone = true
		return nil
	}

	values := make([]string, 0, len(result))
	for v := range result {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if at, err := time.Parse(layout, value); err == nil {
			return at.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q is not ISO-8601", ErrInvalidQuery, value)
}
