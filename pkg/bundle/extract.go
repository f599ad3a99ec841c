package bundle

import (
	"sort"
	"strings"

	"github.com/driftwatch/driftwatch/pkg/catalog"
)

// ExtractNames pulls constituent item names out of a bundle's free-text
// description. Patterns are tried in order of reliability: a
// line-delimited "includes:" section, a "with X, Y and Z" clause, then an
// inline "includes X, Y and Z" clause. The first pattern yielding any
// names wins. Extraction is best-effort and never authoritative; max
// bounds the result.
func ExtractNames(description string, max int) []string {
	if description == "" || max <= 0 {
		return nil
	}

	for _, pattern := range []func(string, int) []string{
		includesSection,
		withClause,
		includesClause,
	} {
		if names := pattern(description, max); len(names) > 0 {
			return names
		}
	}
	return nil
}

// includesSection collects line-delimited entries after an "includes:"
// heading, stopping at the first blank line once entries have started.
func includesSection(description string, max int) []string {
	idx := indexFold(description, "includes:")
	if idx < 0 {
		return nil
	}

	var names []string
	for _, line := range strings.Split(description[idx+len("includes:"):], "\n") {
		name := cleanName(line)
		if name == "" {
			if len(names) > 0 {
				break
			}
			continue
		}
		names = append(names, name)
		if len(names) >= max {
			break
		}
	}
	return names
}

// withClause parses a prose "with X, Y and Z" enumeration.
func withClause(description string, max int) []string {
	idx := indexFold(description, " with ")
	if idx < 0 {
		return nil
	}
	return splitList(clauseAfter(description, idx+len(" with ")), max)
}

// includesClause parses an inline "includes X, Y and Z" enumeration.
func includesClause(description string, max int) []string {
	idx := indexFold(description, "includes ")
	if idx < 0 {
		return nil
	}
	return splitList(clauseAfter(description, idx+len("includes ")), max)
}

// clauseAfter returns the text from start up to the end of the sentence.
func clauseAfter(s string, start int) string {
	rest := s[start:]
	if end := strings.IndexAny(rest, ".!?\n"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// splitList breaks an enumeration clause on commas and "and" connectors.
func splitList(clause string, max int) []string {
	clause = strings.TrimLeft(strings.TrimSpace(clause), ":")

	var names []string
	for _, part := range strings.Split(clause, ",") {
		for _, sub := range strings.Split(strings.ReplaceAll(part, " & ", " and "), " and ") {
			if name := cleanName(sub); name != "" {
				names = append(names, name)
				if len(names) >= max {
					return names
				}
			}
		}
	}
	return names
}

// cleanName normalizes one extracted entry: bullets, surrounding space,
// a trailing parenthetical type annotation, and trailing punctuation.
func cleanName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*•")
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ")") {
		if open := strings.LastIndex(s, "("); open >= 0 {
			s = s[:open]
		}
	}
	s = strings.TrimRight(strings.TrimSpace(s), ".,;:")
	return strings.TrimSpace(s)
}

// MatchConstituents resolves extracted names against the operator catalog
// by bidirectional substring containment, skipping the bundle product
// itself. Candidates are tried in base-name order (full key breaks ties)
// so "Mark I" resolves before "Mark II" regardless of how the variant
// separator sorts; the first match wins per name. Unmatched names drop
// out, so the result may be shorter than the input.
func MatchConstituents(names []string, operator map[catalog.Key]catalog.Item, bundleProductID int64) []Constituent {
	keys := make([]catalog.Key, 0, len(operator))
	for key := range operator {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if bi, bj := keys[i].BaseName(), keys[j].BaseName(); bi != bj {
			return bi < bj
		}
		return keys[i] < keys[j]
	})

	var out []Constituent
	seen := make(map[int64]bool)
	for _, name := range names {
		needle := strings.ToLower(name)
		if needle == "" {
			continue
		}
		for _, key := range keys {
			item := operator[key]
			if item.ProductID == bundleProductID || item.VariantID == 0 {
				continue
			}
			title := strings.ToLower(item.Name)
			if !strings.Contains(title, needle) && !strings.Contains(needle, title) {
				continue
			}
			if !seen[item.VariantID] {
				seen[item.VariantID] = true
				out = append(out, Constituent{Name: item.Name, VariantID: item.VariantID})
			}
			break
		}
	}
	return out
}

func indexFold(s, substr string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(substr))
}
