package membership

import (
    "fmt"
    "strings"
)

// Member is one entry of the fixed cluster roster.
type Member struct {
    ID   string `json:"id"`
    Addr string `json:"addr"`
}

// ParseEntry parses a single "id@host:port" roster entry.
func ParseEntry(s string) (Member, error) {
    s = strings.TrimSpace(s)
    at := strings.Index(s, "@")
    if at <= 0 || at == len(s)-1 {
        return Member{}, fmt.Errorf("membership: invalid roster entry %q, want id@host:port", s)
    }
    m := Member{ID: s[:at], Addr: s[at+1:]}
    if !strings.Contains(m.Addr, ":") {
        return Member{}, fmt.Errorf("membership: invalid address in roster entry %q", s)
    }
    return m, nil
}

// ParseRoster parses and validates a full roster. Duplicate IDs are
// rejected; membership is fixed at startup so the roster must be complete.
func ParseRoster(entries []string) ([]Member, error) {
    out := make([]Member, 0, len(entries))
    seen := make(map[string]struct{}, len(entries))
    for _, e := range entries {
        m, err := ParseEntry(e)
        if err != nil {
            return nil, err
        }
        if _, dup := seen[m.ID]; dup {
            return nil, fmt.Errorf("membership: duplicate roster id %q", m.ID)
        }
        seen[m.ID] = struct{}{}
        out = append(out, m)
    }
    if len(out) == 0 {
        return nil, fmt.Errorf("membership: empty roster")
    }
    return out, nil
}
