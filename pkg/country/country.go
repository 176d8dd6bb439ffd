// Package country normalizes free-text country identifiers (names, common
// abbreviations, ISO 3166-1 alpha-2 and alpha-3 codes) to alpha-3 codes.
package country

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxSuggestions is the cap on Suggest results.
const MaxSuggestions = 5

var (
	// ErrEmptyIdentifier is returned for empty or blank input.
	ErrEmptyIdentifier = errors.New("country code cannot be empty")
	// ErrUnknownIdentifier is returned when the input is not recognized.
	ErrUnknownIdentifier = errors.New("unknown country identifier")
)

// Normalize converts a country name or code to the ISO3 format.
//
// Known names, abbreviations and ISO2 codes are resolved via the alias table.
// Any other 3-letter alphabetic input is returned uppercased without checking
// it against the table: the remote system is authoritative for those.
func Normalize(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.WithStack(ErrEmptyIdentifier)
	}

	if code, ok := aliases.Get(strings.ToLower(trimmed)); ok {
		return code, nil
	}

	switch {
	case len(trimmed) == 3 && isAlpha(trimmed):
		return strings.ToUpper(trimmed), nil
	case len(trimmed) == 2 && isAlpha(trimmed):
		return "", errors.Mark(
			errors.Newf("Unknown country code '%s'. Please use ISO 3166-1 alpha-3 format (e.g., USA, CAN, GBR) or full country name.", input),
			ErrUnknownIdentifier)
	default:
		return "", errors.Mark(
			errors.Newf("Could not recognize '%s'. Try using the full country name or ISO3 code (e.g., 'United States' or 'USA').", input),
			ErrUnknownIdentifier)
	}
}

// Suggest returns up to MaxSuggestions "Name (CODE)" entries that look like
// the query, in alias table order. Entries match when the name contains the
// query, or starts with its first three characters. When nothing matches,
// a fuzzy match is tried to catch typos. The result may be empty.
func Suggest(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	prefix := q
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}

	var res []string
	for pair := aliases.Oldest(); pair != nil; pair = pair.Next() {
		if strings.Contains(pair.Key, q) || strings.HasPrefix(pair.Key, prefix) {
			res = append(res, label(pair.Key, pair.Value))
			if len(res) >= MaxSuggestions {
				return res
			}
		}
	}
	if len(res) > 0 || len(q) < 3 {
		return res
	}

	ranks := fuzzy.RankFindNormalizedFold(q, aliasNames)
	sort.Stable(ranks)
	for _, r := range ranks {
		code, _ := aliases.Get(r.Target)
		res = append(res, label(r.Target, code))
		if len(res) >= MaxSuggestions {
			break
		}
	}
	return res
}

// Lookup returns the display name for a known ISO3 code.
func Lookup(code string) (string, bool) {
	name, ok := displayNames[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return "", false
	}
	return titleCase(name), true
}

// IsKnown reports whether the ISO3 code appears in the alias table.
func IsKnown(code string) bool {
	_, ok := displayNames[strings.ToUpper(code)]
	return ok
}

func label(name, code string) string {
	return fmt.Sprintf("%s (%s)", titleCase(name), code)
}

// titleCase builds a Caser per call: a Caser is stateful and must not be
// shared between goroutines.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
