package page

import (
	"errors"
	"fmt"

	"github.com/gobwas/glob"
)

// AllURLs matches every page.
const AllURLs = "<all_urls>"

// ErrPageNotMatched is returned when a session is started on a page the
// match rules exclude.
var ErrPageNotMatched = errors.New("page does not match")

// Matcher decides which pages get an overlay.
type Matcher struct {
	allowed []glob.Glob
	denied  []glob.Glob
	all     bool
}

// NewMatcher compiles allow and deny URL globs. An empty allow list, or one
// containing <all_urls>, allows every page not denied.
func NewMatcher(allowed, denied []string) (*Matcher, error) {
	m := &Matcher{}

	for _, pattern := range allowed {
		if pattern == AllURLs {
			m.all = true
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed pattern '%s': %w", pattern, err)
		}
		m.allowed = append(m.allowed, g)
	}

	for _, pattern := range denied {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid denied pattern '%s': %w", pattern, err)
		}
		m.denied = append(m.denied, g)
	}

	if len(m.allowed) == 0 {
		m.all = true
	}
	return m, nil
}

// Match returns true if the page at url gets an overlay.
func (m *Matcher) Match(url string) bool {
	for _, g := range m.denied {
		if g.Match(url) {
			return false
		}
	}
	if m.all {
		return true
	}
	for _, g := range m.allowed {
		if g.Match(url) {
			return true
		}
	}
	return false
}
