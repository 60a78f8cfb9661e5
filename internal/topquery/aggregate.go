package topquery

import "sort"

// Aggregate groups records by page, picks the record with the highest
// metric value in each group as the page's top query (ties go to the
// earlier record), annotates every record in the group with that query
// and the group size, and returns the merged set ordered by top_query
// ascending then metric descending.
//
// Records tying on both top_query and metric keep a stable order
// relative to the page-grouped arrangement; callers must not rely on it.
func Aggregate(records []Record, metric Metric) ([]RankedRecord, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	work := make([]Record, len(records))
	copy(work, records)

	// Sort by page so each group is contiguous, best record first.
	sort.SliceStable(work, func(i, j int) bool {
		if work[i].Page != work[j].Page {
			return work[i].Page < work[j].Page
		}
		return metric.value(work[i]) > metric.value(work[j])
	})

	ranked := make([]RankedRecord, len(work))
	for start := 0; start < len(work); {
		end := start
		for end < len(work) && work[end].Page == work[start].Page {
			end++
		}
		top := work[start].Query
		size := end - start
		for i := start; i < end; i++ {
			ranked[i] = RankedRecord{
				TopQuery:      top,
				Query:         work[i].Query,
				Clicks:        work[i].Clicks,
				Impressions:   work[i].Impressions,
				CTR:           work[i].CTR,
				QueriesOnPage: size,
				Page:          work[i].Page,
			}
		}
		start = end
	}

	// Global ordering. Pages sharing a top-query string interleave here;
	// the page column is the only way to tell them apart.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TopQuery != ranked[j].TopQuery {
			return ranked[i].TopQuery < ranked[j].TopQuery
		}
		return rankedValue(ranked[i], metric) > rankedValue(ranked[j], metric)
	})

	return ranked, nil
}

// Compute runs Filter then Aggregate. It is deterministic given
// identical inputs and fails with ErrEmptyInput when nothing survives
// filtering.
func Compute(records []Record, metric Metric, opts FilterOptions) ([]RankedRecord, error) {
	filtered, err := Filter(records, opts)
	if err != nil {
		return nil, err
	}
	return Aggregate(filtered, metric)
}

func rankedValue(r RankedRecord, m Metric) int {
	if m == MetricImpressions {
		return r.Impressions
	}
	return r.Clicks
}
