package notes

import (
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// NormalizeURL strips the fragment identifier from raw and returns the
// canonical scheme+host+path+query form used for matching and remote queries.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// matchesURL reports whether a stored URL addresses the same page as the
// (already normalized) target. Fragments are ignored. A target without a
// query string matches the page regardless of the stored query; a target
// that carries one must match it exactly. Malformed stored URLs never
// match; callers skip them rather than raising.
func matchesURL(target, stored string) bool {
	t, err := url.Parse(target)
	if err != nil {
		return false
	}
	s, err := url.Parse(stored)
	if err != nil {
		return false
	}
	if s.Scheme != t.Scheme || s.Host != t.Host || s.Path != t.Path {
		return false
	}
	return t.RawQuery == "" || s.RawQuery == t.RawQuery
}

// ignoreMatcher filters URLs against glob patterns (e.g. "**.bank.com/**").
// Patterns match against "host/path" with the scheme dropped, the same
// doublestar dialect the watch pattern API uses.
type ignoreMatcher struct {
	patterns []string
}

func newIgnoreMatcher(patterns []string) *ignoreMatcher {
	valid := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || !doublestar.ValidatePattern(p) {
			continue
		}
		valid = append(valid, p)
	}
	return &ignoreMatcher{patterns: valid}
}

// Ignored reports whether note capture is disabled for the given URL.
func (m *ignoreMatcher) Ignored(raw string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	subject := u.Host + u.Path
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, subject); ok {
			return true
		}
	}
	return false
}
