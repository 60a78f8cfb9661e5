// Package topquery reorganizes per-query Search Analytics rows into
// per-page top-query groups. It is a pure in-memory transformation: no
// I/O, no state between calls.
package topquery

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned when there are no records to process, either
// because the source returned nothing or because filtering removed
// every record.
var ErrEmptyInput = errors.New("no records to process")

// ErrBadPattern is returned when the brand-term exclusion list does not
// compile as a regular expression.
var ErrBadPattern = errors.New("invalid brand-term pattern")

// Record is one query/page performance row as delivered by the source.
// Multiple records may share a page; (query, page) pairs are not
// guaranteed unique and are never deduplicated.
type Record struct {
	Query       string  `json:"query"`
	Page        string  `json:"page"`
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	CTR         float64 `json:"ctr"`
}

// RankedRecord is a Record annotated with its page's top query and the
// size of the page's record group. QueriesOnPage is exported under the
// column name q_pages_top_query for output compatibility.
type RankedRecord struct {
	TopQuery      string  `json:"top_query"`
	Query         string  `json:"query"`
	Clicks        int     `json:"clicks"`
	Impressions   int     `json:"impressions"`
	CTR           float64 `json:"ctr"`
	QueriesOnPage int     `json:"q_pages_top_query"`
	Page          string  `json:"page"`
}

// Metric selects the column that ranks queries within a page and breaks
// ties in the final ordering.
type Metric string

const (
	MetricClicks      Metric = "clicks"
	MetricImpressions Metric = "impressions"
)

// ParseMetric converts a wire name into a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case MetricClicks:
		return MetricClicks, nil
	case MetricImpressions:
		return MetricImpressions, nil
	default:
		return "", fmt.Errorf("unknown metric %q (want clicks or impressions)", s)
	}
}

func (m Metric) String() string { return string(m) }

// value returns the ranked column of r.
func (m Metric) value(r Record) int {
	if m == MetricImpressions {
		return r.Impressions
	}
	return r.Clicks
}

// ParseTerms splits a comma-separated brand-term list, trimming
// whitespace and dropping empty entries.
func ParseTerms(s string) []string {
	var terms []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}
