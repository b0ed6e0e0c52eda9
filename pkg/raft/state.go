package raft

import (
    "fmt"
    "time"
)

// Role of a node within the current term.
type Role uint8

const (
    Follower Role = iota
    Candidate
    Leader
)

func (r Role) String() string {
    switch r {
    case Follower:
        return "follower"
    case Candidate:
        return "candidate"
    case Leader:
        return "leader"
    default:
        return "unknown"
    }
}

// nodeState is the mutable heart of a node. It carries no lock of its own:
// the owning Node serializes every access through its mutex, per the
// concurrency contract shared by the consensus loop and the message
// processor.
type nodeState struct {
    role        Role
    currentTerm uint64
    votedFor    string
    commitIndex uint64
    lastApplied uint64

    // leader-only replication progress, created on promotion and discarded
    // on demotion
    nextIndex  map[string]uint64
    matchIndex map[string]uint64

    // candidate-only tally for the in-flight election
    votesGranted int

    leaderID        string
    lastContact     time.Time
    electionTimeout time.Duration
}

func newNodeState() *nodeState {
    return &nodeState{role: Follower, lastContact: time.Now()}
}

// advanceTerm moves to a strictly higher term and clears the vote record.
// Term regression is protocol corruption and aborts the node.
func (s *nodeState) advanceTerm(term uint64) {
    if term < s.currentTerm {
        panic(fmt.Sprintf("raft: term regression %d -> %d", s.currentTerm, term))
    }
    if term > s.currentTerm {
        s.currentTerm = term
        s.votedFor = ""
    }
}

// becomeFollower reverts to follower at the given term. A term advance
// invalidates the leader hint until the new leader makes contact.
func (s *nodeState) becomeFollower(term uint64) {
    if term > s.currentTerm {
        s.leaderID = ""
    }
    s.advanceTerm(term)
    s.role = Follower
    s.nextIndex = nil
    s.matchIndex = nil
    s.votesGranted = 0
}

// becomeCandidate starts a new election: bump the term, vote for self.
func (s *nodeState) becomeCandidate(self string) {
    s.advanceTerm(s.currentTerm + 1)
    s.role = Candidate
    s.votedFor = self
    s.votesGranted = 1
    s.leaderID = ""
}

// becomeLeader initializes per-peer replication progress.
func (s *nodeState) becomeLeader(self string, peers []string, lastLogIndex uint64) {
    s.role = Leader
    s.leaderID = self
    s.nextIndex = make(map[string]uint64, len(peers))
    s.matchIndex = make(map[string]uint64, len(peers))
    for _, p := range peers {
        s.nextIndex[p] = lastLogIndex + 1
        s.matchIndex[p] = 0
    }
}

// setCommitIndex advances the commit watermark. Regression aborts the node.
func (s *nodeState) setCommitIndex(index uint64) {
    if index < s.commitIndex {
        panic(fmt.Sprintf("raft: commit index regression %d -> %d", s.commitIndex, index))
    }
    s.commitIndex = index
}

// quorum returns the majority threshold for a cluster of n members.
func quorum(n int) int { return n/2 + 1 }
