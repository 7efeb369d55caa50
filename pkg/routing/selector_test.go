package routing

import (
	"net/url"
	"testing"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func names(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSelectorCandidatesFor(t *testing.T) {
	origins := []Origin{
		{Name: "mirror-b", BaseURL: mustURL(t, "https://b.example"), Priority: 2},
		{Name: "primary", BaseURL: mustURL(t, "https://a.example"), Priority: 0},
		{Name: "mirror-c", BaseURL: mustURL(t, "https://c.example"), Priority: 2},
		{Name: "cn", BaseURL: mustURL(t, "https://cn.example"), Priority: 1, Region: "cn"},
	}

	tests := []struct {
		name     string
		region   string
		failover bool
		want     []string
	}{
		{"failover sorted stable", "", true, []string{"primary", "mirror-b", "mirror-c"}},
		{"region adds tagged origin", "cn", true, []string{"primary", "cn", "mirror-b", "mirror-c"}},
		{"other region drops tagged origin", "eu", true, []string{"primary", "mirror-b", "mirror-c"}},
		{"single origin", "", false, []string{"primary"}},
		{"single origin in region", "cn", false, []string{"primary"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelector(origins, tt.region, tt.failover)
			got := names(s.CandidatesFor("/t/p/w500/a.jpg"))
			if !equal(got, tt.want) {
				t.Errorf("CandidatesFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectorDeterministic(t *testing.T) {
	s := NewSelector([]Origin{
		{Name: "x", BaseURL: mustURL(t, "https://x.example"), Priority: 1},
		{Name: "y", BaseURL: mustURL(t, "https://y.example"), Priority: 1},
	}, "", true)

	first := s.CandidatesFor("/a")
	first[0].Name = "mutated"

	second := s.CandidatesFor("/a")
	if !equal(names(second), []string{"x", "y"}) {
		t.Errorf("candidates changed between calls: %v", names(second))
	}
}

func TestCandidateTarget(t *testing.T) {
	tests := []struct {
		base, path, query, want string
	}{
		{"https://image.tmdb.org", "/t/p/w500/a.jpg", "", "https://image.tmdb.org/t/p/w500/a.jpg"},
		{"https://api.themoviedb.org/", "/3/movie/550", "b=2&a=1", "https://api.themoviedb.org/3/movie/550?b=2&a=1"},
		{"https://mirror.example/tmdb", "/t/p/x.jpg", "", "https://mirror.example/tmdb/t/p/x.jpg"},
		{"https://mirror.example?drop=me", "/x", "", "https://mirror.example/x"},
		{"https://a.example", "/name%20with%20space", "", "https://a.example/name%20with%20space"},
	}
	for _, tt := range tests {
		c := Candidate{BaseURL: mustURL(t, tt.base)}
		if got := c.Target(tt.path, tt.query); got != tt.want {
			t.Errorf("Target(%q, %q) on %q = %q, want %q", tt.path, tt.query, tt.base, got, tt.want)
		}
	}
}
