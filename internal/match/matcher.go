// Package match filters listed objects down to the set an asset cares
// about: delimiter-depth pruning plus an asset-supplied name predicate.
package match

import (
	"regexp"
	"strings"

	"github.com/fathomdata/batchsource/internal/storage"
)

// Predicate decides whether a listed object belongs to the asset.
// A nil Predicate accepts everything.
type Predicate func(ref storage.ObjectRef) bool

// SuffixFilter accepts objects whose key ends with the given suffix,
// case-insensitively ("data.CSV" matches ".csv").
func SuffixFilter(suffix string) Predicate {
	lowered := strings.ToLower(suffix)
	return func(ref storage.ObjectRef) bool {
		return strings.HasSuffix(strings.ToLower(ref.Key), lowered)
	}
}

// RegexFilter accepts objects whose key matches the pattern.
func RegexFilter(pattern string) (Predicate, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return func(ref storage.ObjectRef) bool {
		return re.MatchString(ref.Key)
	}, nil
}

// Rules describes one matching pass over a listing.
type Rules struct {
	// Prefix is the listing prefix; it is stripped before delimiter
	// pruning so nesting depth is judged relative to the prefix.
	Prefix string

	// Delimiter separates path segments, typically "/".
	Delimiter string

	// Recursive includes nested paths. When false, only objects at the
	// immediate directory level under Prefix are kept.
	Recursive bool

	// Name is the asset-specific filter, e.g. a CSV suffix check.
	Name Predicate
}

// Apply filters objects by the rules. An empty result is not an error; the
// caller decides whether zero matches is acceptable.
func Apply(objects []storage.ObjectRef, rules Rules) []storage.ObjectRef {
	matched := make([]storage.ObjectRef, 0, len(objects))
	for _, ref := range objects {
		rest := strings.TrimPrefix(ref.Key, rules.Prefix)

		// Directory markers carry no data.
		if rest == "" || (rules.Delimiter != "" && strings.HasSuffix(rest, rules.Delimiter)) {
			continue
		}

		if !rules.Recursive && rules.Delimiter != "" && strings.Contains(rest, rules.Delimiter) {
			continue
		}

		if rules.Name != nil && !rules.Name(ref) {
			continue
		}

		matched = append(matched, ref)
	}
	return matched
}
