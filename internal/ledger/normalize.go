package ledger

import (
	"net/url"
	"strings"
)

// NormalizeItemID derives the canonical id of a promotional item. The last
// non-empty path segment of itemURL wins (query and fragment dropped,
// lower-cased); without one, the trimmed lower-cased name is used with runs
// of whitespace collapsed to '-'. Both forms of the same item therefore
// agree: "Some Game" and ".../p/some-game?lang=en" both give "some-game".
func NormalizeItemID(itemURL, name string) string {
	if id := lastSegment(itemURL); id != "" {
		return id
	}
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

func lastSegment(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	} else {
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
	}

	segs := strings.Split(p, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(segs[i]); s != "" {
			return strings.ToLower(s)
		}
	}
	return ""
}
