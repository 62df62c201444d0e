package inventory

import "path/filepath"

// Pattern is one select/ignore rule: either a glob applied to
// resourceType, or a callable given the full item. Exactly one of the
// two is set.
type Pattern struct {
	Glob string
	Func func(Item) bool
}

// GlobPattern builds a Pattern matching resourceType against a
// filepath.Match-style glob (`*` wildcards).
func GlobPattern(glob string) Pattern {
	return Pattern{Glob: glob}
}

// FuncPattern builds a Pattern from an arbitrary predicate over the
// full item.
func FuncPattern(fn func(Item) bool) Pattern {
	return Pattern{Func: fn}
}

func (p Pattern) matches(item Item) bool {
	if p.Func != nil {
		return p.Func(item)
	}
	ok, _ := filepath.Match(p.Glob, item.ResourceType)
	return ok
}

func matchesAny(patterns []Pattern, item Item) bool {
	for _, p := range patterns {
		if p.matches(item) {
			return true
		}
	}
	return false
}

// admit applies select (whitelist) first, then ignore (blacklist): an
// item survives only if either select is empty or it matches a select
// pattern, and it does not match any ignore pattern.
func admit(cc ClusterConfig, item Item) bool {
	if len(cc.Select) > 0 && !matchesAny(cc.Select, item) {
		return false
	}
	if matchesAny(cc.Ignore, item) {
		return false
	}
	return true
}
