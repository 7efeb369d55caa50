package routing

import (
	"sort"
)

// Selector orders a route's origins for failover.
type Selector struct {
	origins  []Origin
	failover bool
}

// NewSelector keeps the origins that serve region (an origin with no region
// serves every region) and sorts them by ascending priority. Origins with
// equal priority keep their configured order.
func NewSelector(origins []Origin, region string, failover bool) *Selector {
	kept := make([]Origin, 0, len(origins))
	for _, o := range origins {
		if o.Region == "" || o.Region == region {
			kept = append(kept, o)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Priority < kept[j].Priority
	})
	return &Selector{origins: kept, failover: failover}
}

// CandidatesFor returns the ordered candidates for resourcePath. Without
// failover the result holds only the primary origin. The returned slice is
// owned by the caller.
func (s *Selector) CandidatesFor(resourcePath string) []Candidate {
	n := len(s.origins)
	if !s.failover && n > 1 {
		n = 1
	}
	out := make([]Candidate, n)
	for i := 0; i < n; i++ {
		o := s.origins[i]
		out[i] = Candidate{Name: o.Name, BaseURL: o.BaseURL, Priority: o.Priority}
	}
	return out
}

// Origins returns the filtered, sorted origins.
func (s *Selector) Origins() []Origin {
	return append([]Origin(nil), s.origins...)
}

// Len returns the number of usable origins.
func (s *Selector) Len() int {
	return len(s.origins)
}
