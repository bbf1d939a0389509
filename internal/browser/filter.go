package browser

import "strings"

// Filter returns the entries matching query, in their original order.
// Matching is case-insensitive over the entry name, tag keys, tag values
// and metadata values. An empty query matches everything. Filter never
// mutates its input; the view it returns is derived fresh on every call.
func Filter(entries []FileEntry, query string) []FileEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		out := make([]FileEntry, len(entries))
		copy(out, entries)
		return out
	}

	var out []FileEntry
	for _, e := range entries {
		if entryMatches(e, q) {
			out = append(out, e)
		}
	}
	return out
}

// entryMatches reports whether any searchable field of e contains q.
// q must already be lowercase.
func entryMatches(e FileEntry, q string) bool {
	if strings.Contains(strings.ToLower(e.Name), q) {
		return true
	}
	for _, t := range e.Tags {
		if strings.Contains(strings.ToLower(t.Key), q) ||
			strings.Contains(strings.ToLower(t.Value), q) {
			return true
		}
	}
	for _, v := range e.Metadata {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}
