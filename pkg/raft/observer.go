package raft

import "time"

// EventType enumerates the transition events a node emits.
type EventType string

const (
    EventRoleChanged     EventType = "role_changed"
    EventTermAdvanced    EventType = "term_advanced"
    EventElectionStarted EventType = "election_started"
    EventElectionWon     EventType = "election_won"
    EventEntryCommitted  EventType = "entry_committed"
)

// Event describes a single state transition. Only the fields relevant to the
// event type are populated.
type Event struct {
    Type   EventType
    NodeID string
    Role   Role
    Term   uint64
    Index  uint64
    At     time.Time

    // Latency is the submit-to-commit duration, set on EventEntryCommitted
    // for entries that originated on this node.
    Latency time.Duration
}

// Observer receives transition events synchronously from inside the node's
// serialized loops. Implementations must not block; hand off to a channel
// or drop when the consumer is slow.
type Observer interface {
    OnEvent(Event)
}

type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}

// ChanObserver buffers events on a channel, dropping when full. Useful in
// tests to assert on transition sequences without string-matching log
// output.
type ChanObserver struct {
    C chan Event
}

// NewChanObserver returns an observer buffering up to size events.
func NewChanObserver(size int) *ChanObserver {
    if size <= 0 {
        size = 64
    }
    return &ChanObserver{C: make(chan Event, size)}
}

func (o *ChanObserver) OnEvent(ev Event) {
    select {
    case o.C <- ev:
    default:
        // drop to avoid blocking the consensus internals
    }
}

var _ Observer = (*ChanObserver)(nil)

// multiObserver fans an event out to several sinks.
type multiObserver []Observer

func (m multiObserver) OnEvent(ev Event) {
    for _, o := range m {
        o.OnEvent(ev)
    }
}

// MultiObserver combines observers; nils are skipped.
func MultiObserver(obs ...Observer) Observer {
    out := make(multiObserver, 0, len(obs))
    for _, o := range obs {
        if o != nil {
            out = append(out, o)
        }
    }
    if len(out) == 0 {
        return nopObserver{}
    }
    return out
}
