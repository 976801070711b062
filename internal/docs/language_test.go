package docs

import (
	"net/http/httptest"
	"testing"
)

func TestNegotiatorResolve(t *testing.T) {
	n := NewNegotiator([]string{"ko", "en", "ja"}, "en")

	tests := []struct {
		name   string
		query  string
		accept string
		want   string
	}{
		{"default", "", "", "en"},
		{"query wins", "?lang=ja", "ko-KR,ko;q=0.9", "ja"},
		{"query case-insensitive", "?lang=KO", "", "ko"},
		{"unsupported query falls through", "?lang=fr", "ko-KR,ko;q=0.9", "ko"},
		{"regional accept", "", "ja-JP", "ja"},
		{"weighted accept", "", "fr;q=0.9, ko;q=0.8", "ko"},
		{"unsupported accept", "", "fr-FR", "en"},
		{"garbage accept", "", ";;;", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/docs/"+tt.query, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			if got := n.Resolve(req); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNegotiatorWithoutLanguages(t *testing.T) {
	n := NewNegotiator(nil, "en")
	req := httptest.NewRequest("GET", "/docs/", nil)
	req.Header.Set("Accept-Language", "ko")
	if got := n.Resolve(req); got != "en" {
		t.Errorf("Resolve() = %q, want en", got)
	}
}
