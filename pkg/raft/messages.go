package raft

// The four peer-to-peer message kinds. Request/response pairs travel over
// the PeerTransport as the wire contract; the JSON tags are the wire format
// for the gRPC JSON codec and the HTTP management surface alike.

// RequestVote is broadcast by a candidate at the start of an election.
type RequestVote struct {
    Term         uint64 `json:"term"`
    CandidateID  string `json:"candidateId"`
    LastLogIndex uint64 `json:"lastLogIndex"`
    LastLogTerm  uint64 `json:"lastLogTerm"`
}

// RequestVoteResponse answers a RequestVote.
type RequestVoteResponse struct {
    Term        uint64 `json:"term"`
    VoteGranted bool   `json:"voteGranted"`
}

// AppendEntries replicates log entries and doubles as the leader heartbeat
// when Entries is empty.
type AppendEntries struct {
    Term         uint64  `json:"term"`
    LeaderID     string  `json:"leaderId"`
    PrevLogIndex uint64  `json:"prevLogIndex"`
    PrevLogTerm  uint64  `json:"prevLogTerm"`
    Entries      []Entry `json:"entries,omitempty"`
    LeaderCommit uint64  `json:"leaderCommit"`
}

// AppendEntriesResponse answers an AppendEntries. MatchIndex reports the
// follower's highest index known to match the leader's log after a
// successful append, so the leader can drive commit advancement from
// per-peer match tracking. ConflictIndex hints where the leader should back
// off to after a consistency-check failure.
type AppendEntriesResponse struct {
    Term          uint64 `json:"term"`
    Success       bool   `json:"success"`
    MatchIndex    uint64 `json:"matchIndex,omitempty"`
    ConflictIndex uint64 `json:"conflictIndex,omitempty"`
}

// kind discriminates inbox envelopes.
type kind uint8

const (
    kindRequestVote kind = iota
    kindRequestVoteResponse
    kindAppendEntries
    kindAppendEntriesResponse
)

func (k kind) String() string {
    switch k {
    case kindRequestVote:
        return "request_vote"
    case kindRequestVoteResponse:
        return "request_vote_response"
    case kindAppendEntries:
        return "append_entries"
    case kindAppendEntriesResponse:
        return "append_entries_response"
    default:
        return "unknown"
    }
}

// message is the transient envelope the message processor consumes. Exactly
// one payload pointer is set, matching Kind. Inbound requests carry a reply
// channel so the transport handler can wait for the serialized outcome;
// responses to our own outbound RPCs carry none.
type message struct {
    kind kind
    from string

    vote     *RequestVote
    voteResp *RequestVoteResponse
    app      *AppendEntries
    appResp  *AppendEntriesResponse

    reply chan message
}
