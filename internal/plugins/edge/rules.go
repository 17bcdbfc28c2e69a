// Package edge is the request-time gate evaluated before any page handler.
// It decides from the path and the user cookie alone: no session store,
// no backend call. Gate.Decide is pure; Middleware adapts it to Echo.
package edge

import "strings"

// Kind is how a rule pattern matches a path.
type Kind int

const (
	// KindPrefix matches the pattern itself or anything below it.
	KindPrefix Kind = iota
	// KindDetail matches exactly one dynamic segment below the pattern's
	// section, e.g. "/courses/:id" matches "/courses/3" but not "/courses".
	KindDetail
)

// Condition is what a matching request must satisfy.
type Condition int

const (
	RequireAuth Condition = iota
	RequireAdmin
	AnonymousOnly
)

// Rule is one protected-path entry.
type Rule struct {
	Pattern   string
	Kind      Kind
	Condition Condition
}

// Matches reports whether path falls under the rule.
func (r Rule) Matches(path string) bool {
	switch r.Kind {
	case KindDetail:
		section, _, ok := strings.Cut(strings.TrimSuffix(r.Pattern, "/"), "/:")
		if !ok {
			return false
		}
		rest, found := strings.CutPrefix(path, section+"/")
		rest = strings.TrimSuffix(rest, "/")
		return found && rest != "" && !strings.Contains(rest, "/")
	default:
		return path == r.Pattern || strings.HasPrefix(path, r.Pattern+"/")
	}
}

// Table is an ordered rule list. The first matching rule applies, so admin
// rules come before the generic protected prefixes they overlap with.
type Table []Rule

// Match returns the first rule matching path.
func (t Table) Match(path string) (Rule, bool) {
	for _, r := range t {
		if r.Matches(path) {
			return r, true
		}
	}
	return Rule{}, false
}

// DefaultTable is the platform's page protection table.
func DefaultTable() Table {
	t := Table{
		{Pattern: "/admin", Kind: KindPrefix, Condition: RequireAdmin},
		{Pattern: "/courses/:id", Kind: KindDetail, Condition: RequireAuth},
		{Pattern: "/quests/:id", Kind: KindDetail, Condition: RequireAuth},
	}
	for _, p := range []string{
		"/dashboard", "/profile", "/my-courses", "/quizzes", "/quests/progress",
		"/nfts", "/rewards", "/subscription", "/chat", "/analytics", "/settings",
	} {
		t = append(t, Rule{Pattern: p, Kind: KindPrefix, Condition: RequireAuth})
	}
	return append(t,
		Rule{Pattern: "/login", Kind: KindPrefix, Condition: AnonymousOnly},
		Rule{Pattern: "/register", Kind: KindPrefix, Condition: AnonymousOnly},
	)
}
