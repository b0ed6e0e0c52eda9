package raft

import (
    "encoding/json"
    "fmt"
    "time"
)

// Entry is a single record of the replicated log. Index is 1-based and
// contiguous; Term never decreases across the log. At and Origin are
// provenance metadata and play no role in ordering decisions.
type Entry struct {
    Index   uint64          `json:"index"`
    Term    uint64          `json:"term"`
    Command json.RawMessage `json:"command,omitempty"`
    ID      string          `json:"id,omitempty"`
    At      time.Time       `json:"at,omitempty"`
    Origin  string          `json:"origin,omitempty"`
}

// Log is the in-memory ordered entry store. It is exclusively owned by the
// node that holds it; external readers go through Node.Status. Methods are
// not safe for concurrent use on their own — the owning node serializes
// access.
type Log struct {
    entries []Entry
}

// NewLog returns an empty log.
func NewLog() *Log { return &Log{} }

// Append adds an entry at the next contiguous index. A gap or overlap is a
// protocol-implementation bug, not a runtime condition, so Append panics on
// contract violation.
func (l *Log) Append(e Entry) {
    if want := l.LastIndex() + 1; e.Index != want {
        panic(fmt.Sprintf("raft: out-of-order append: index %d, want %d", e.Index, want))
    }
    if n := len(l.entries); n > 0 && e.Term < l.entries[n-1].Term {
        panic(fmt.Sprintf("raft: term regression in log: %d after %d", e.Term, l.entries[n-1].Term))
    }
    l.entries = append(l.entries, e)
}

// LastIndex returns the index of the last entry, 0 when empty.
func (l *Log) LastIndex() uint64 { return uint64(len(l.entries)) }

// LastIndexAndTerm returns (0, 0) on an empty log.
func (l *Log) LastIndexAndTerm() (uint64, uint64) {
    n := len(l.entries)
    if n == 0 {
        return 0, 0
    }
    return l.entries[n-1].Index, l.entries[n-1].Term
}

// TermAt returns the term of the entry at index, 0 for index 0 or anything
// past the end.
func (l *Log) TermAt(index uint64) uint64 {
    if index == 0 || index > l.LastIndex() {
        return 0
    }
    return l.entries[index-1].Term
}

// Get returns the entry at index.
func (l *Log) Get(index uint64) (Entry, bool) {
    if index == 0 || index > l.LastIndex() {
        return Entry{}, false
    }
    return l.entries[index-1], true
}

// EntriesFrom copies out all entries from index to the end. The copy keeps
// the sequence restartable: callers may re-request the same range after a
// failed replication round.
func (l *Log) EntriesFrom(index uint64) []Entry {
    if index == 0 {
        index = 1
    }
    if index > l.LastIndex() {
        return nil
    }
    out := make([]Entry, l.LastIndex()-index+1)
    copy(out, l.entries[index-1:])
    return out
}

// TruncateFrom drops every entry at index and beyond. Used when a follower
// discovers a conflicting uncommitted suffix.
func (l *Log) TruncateFrom(index uint64) {
    if index == 0 || index > l.LastIndex() {
        return
    }
    l.entries = l.entries[:index-1]
}

// Len returns the number of entries.
func (l *Log) Len() int { return len(l.entries) }
