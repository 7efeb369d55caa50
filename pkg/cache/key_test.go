package cache

import "testing"

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		want   string
	}{
		{"get with query", "GET", "https://api.themoviedb.org/3/movie/550?language=en", "GET https://api.themoviedb.org/3/movie/550?language=en"},
		{"method is upper-cased", "get", "https://image.tmdb.org/t/p/w500/a.jpg", "GET https://image.tmdb.org/t/p/w500/a.jpg"},
		{"head", "HEAD", "https://image.tmdb.org/t/p/original/b.png", "HEAD https://image.tmdb.org/t/p/original/b.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildKey(tt.method, tt.url); got != tt.want {
				t.Errorf("BuildKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildKey_QueryOrderIsSignificant(t *testing.T) {
	a := BuildKey("GET", "https://api.themoviedb.org/3/search/movie?query=x&page=1")
	b := BuildKey("GET", "https://api.themoviedb.org/3/search/movie?page=1&query=x")
	if a == b {
		t.Error("keys differing only in parameter order must be distinct")
	}
	if a != BuildKey("GET", "https://api.themoviedb.org/3/search/movie?query=x&page=1") {
		t.Error("key is not stable for identical input")
	}
}

func TestCacheable(t *testing.T) {
	tests := []struct {
		method  string
		hasBody bool
		want    bool
	}{
		{"GET", false, true},
		{"HEAD", false, true},
		{"get", false, true},
		{"GET", true, false},
		{"POST", false, false},
		{"PUT", true, false},
		{"DELETE", false, false},
		{"OPTIONS", false, false},
	}

	for _, tt := range tests {
		if got := Cacheable(tt.method, tt.hasBody); got != tt.want {
			t.Errorf("Cacheable(%q, %v) = %v, want %v", tt.method, tt.hasBody, got, tt.want)
		}
	}
}
