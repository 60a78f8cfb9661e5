package topquery

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterOptions controls the optional pre-aggregation filters.
//
// BrandTerms are trimmed, joined with "|" and compiled as a regular
// expression without escaping: a term containing metacharacters behaves
// as a pattern, not a literal. Matching is case-sensitive substring
// search over the query.
type FilterOptions struct {
	BrandTerms     []string
	DropZeroClicks bool
}

// Filter removes brand-term matches and, optionally, zero-click records.
// The brand filter applies first. With neither option set the input is
// returned as a copy. An empty input is ErrEmptyInput; an empty result
// after filtering is not an error here — Aggregate rejects it.
func Filter(records []Record, opts FilterOptions) ([]Record, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	var brand *regexp.Regexp
	if terms := trimTerms(opts.BrandTerms); len(terms) > 0 {
		re, err := regexp.Compile(strings.Join(terms, "|"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPattern, err)
		}
		brand = re
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if brand != nil && brand.MatchString(r.Query) {
			continue
		}
		if opts.DropZeroClicks && r.Clicks <= 0 {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func trimTerms(terms []string) []string {
	var out []string
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
