package static

import (
    "strings"

    "github.com/amirimatin/go-consensus/pkg/discovery"
)

type staticEntries struct {
    entries []string
}

func (s *staticEntries) Entries() []string { return append([]string(nil), s.entries...) }

// New returns a Discovery that always returns the given roster entries.
func New(entries ...string) discovery.Discovery {
    cleaned := make([]string, 0, len(entries))
    for _, v := range entries {
        v = strings.TrimSpace(v)
        if v != "" {
            cleaned = append(cleaned, v)
        }
    }
    return &staticEntries{entries: cleaned}
}

// Parse converts a comma-separated list into []string entries.
func Parse(csv string) []string {
    if csv == "" {
        return nil
    }
    parts := strings.Split(csv, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" {
            out = append(out, p)
        }
    }
    return out
}
