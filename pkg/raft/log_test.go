package raft

import (
    "encoding/json"
    "testing"
)

func entry(index, term uint64) Entry {
    return Entry{Index: index, Term: term, Command: json.RawMessage(`"x"`)}
}

func TestLog_AppendAndLookup(t *testing.T) {
    l := NewLog()
    if idx, term := l.LastIndexAndTerm(); idx != 0 || term != 0 {
        t.Fatalf("empty log last = (%d, %d), want (0, 0)", idx, term)
    }
    l.Append(entry(1, 1))
    l.Append(entry(2, 1))
    l.Append(entry(3, 2))

    if got := l.LastIndex(); got != 3 {
        t.Fatalf("last index = %d, want 3", got)
    }
    if got := l.TermAt(2); got != 1 {
        t.Fatalf("term at 2 = %d, want 1", got)
    }
    if got := l.TermAt(3); got != 2 {
        t.Fatalf("term at 3 = %d, want 2", got)
    }
    if got := l.TermAt(0); got != 0 {
        t.Fatalf("term at 0 = %d, want 0", got)
    }
    if got := l.TermAt(9); got != 0 {
        t.Fatalf("term past end = %d, want 0", got)
    }
    if _, ok := l.Get(4); ok {
        t.Fatalf("get past end should fail")
    }
    e, ok := l.Get(3)
    if !ok || e.Index != 3 || e.Term != 2 {
        t.Fatalf("get(3) = %+v, %v", e, ok)
    }
}

func TestLog_AppendOutOfOrderPanics(t *testing.T) {
    l := NewLog()
    l.Append(entry(1, 1))
    defer func() {
        if recover() == nil {
            t.Fatalf("expected panic on index gap")
        }
    }()
    l.Append(entry(3, 1))
}

func TestLog_AppendTermRegressionPanics(t *testing.T) {
    l := NewLog()
    l.Append(entry(1, 3))
    defer func() {
        if recover() == nil {
            t.Fatalf("expected panic on term regression")
        }
    }()
    l.Append(entry(2, 2))
}

func TestLog_EntriesFrom(t *testing.T) {
    l := NewLog()
    for i := uint64(1); i <= 5; i++ {
        l.Append(entry(i, 1))
    }
    got := l.EntriesFrom(3)
    if len(got) != 3 || got[0].Index != 3 || got[2].Index != 5 {
        t.Fatalf("entries from 3 = %+v", got)
    }
    if got := l.EntriesFrom(6); got != nil {
        t.Fatalf("entries past end = %+v, want nil", got)
    }
    // the returned slice is a copy; mutating it must not touch the log
    got = l.EntriesFrom(1)
    got[0].Term = 99
    if l.TermAt(1) != 1 {
        t.Fatalf("log aliased by EntriesFrom result")
    }
}

func TestLog_TruncateFrom(t *testing.T) {
    l := NewLog()
    for i := uint64(1); i <= 4; i++ {
        l.Append(entry(i, 1))
    }
    l.TruncateFrom(3)
    if got := l.LastIndex(); got != 2 {
        t.Fatalf("last index after truncate = %d, want 2", got)
    }
    // truncation reopens the indexes for a different suffix
    l.Append(entry(3, 2))
    if got := l.TermAt(3); got != 2 {
        t.Fatalf("term at 3 after re-append = %d, want 2", got)
    }
    l.TruncateFrom(9) // past end is a no-op
    if got := l.Len(); got != 3 {
        t.Fatalf("len = %d, want 3", got)
    }
}
