package docs

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

// Negotiator picks the panel language for a request.
type Negotiator struct {
	supported []string
	matcher   language.Matcher
	fallback  string
}

// NewNegotiator builds a negotiator over the supported language codes.
// Unparseable codes are skipped. fallback is used when nothing matches.
func NewNegotiator(supported []string, fallback string) *Negotiator {
	n := &Negotiator{fallback: fallback}
	tags := make([]language.Tag, 0, len(supported))
	for _, code := range supported {
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		n.supported = append(n.supported, code)
		tags = append(tags, tag)
	}
	if len(tags) > 0 {
		n.matcher = language.NewMatcher(tags)
	}
	return n
}

// Resolve returns the ?lang= query value when supported, else the best
// Accept-Language match, else the fallback.
func (n *Negotiator) Resolve(r *http.Request) string {
	if lang := strings.TrimSpace(r.URL.Query().Get("lang")); lang != "" {
		for _, code := range n.supported {
			if strings.EqualFold(code, lang) {
				return code
			}
		}
	}

	accept := r.Header.Get("Accept-Language")
	if accept == "" || n.matcher == nil {
		return n.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return n.fallback
	}
	_, index, confidence := n.matcher.Match(tags...)
	if confidence == language.No {
		return n.fallback
	}
	return n.supported[index]
}
