package raft

import "time"

// Metrics are cumulative counters maintained by the node since Start.
type Metrics struct {
    ElectionsStarted  uint64        `json:"electionsStarted"`
    ElectionsWon      uint64        `json:"electionsWon"`
    EntriesReplicated uint64        `json:"entriesReplicated"`
    LeaderChanges     uint64        `json:"leaderChanges"`
    AvgCommitLatency  time.Duration `json:"avgCommitLatency"`
}

// Status is an immutable snapshot of node health. Safe to request from any
// goroutine; the node builds it under its own serialization.
type Status struct {
    NodeID      string  `json:"nodeId"`
    Role        string  `json:"role"`
    Term        uint64  `json:"term"`
    LogLength   int     `json:"logLength"`
    CommitIndex uint64  `json:"commitIndex"`
    LastApplied uint64  `json:"lastApplied"`
    IsLeader    bool    `json:"isLeader"`
    LeaderID    string  `json:"leaderId,omitempty"`
    ClusterSize int     `json:"clusterSize"`
    Metrics     Metrics `json:"metrics"`
}

// Status returns a point-in-time snapshot of the node.
func (n *Node) Status() Status {
    n.mu.Lock()
    defer n.mu.Unlock()

    avg := time.Duration(0)
    if n.latencyCount > 0 {
        avg = n.latencySum / time.Duration(n.latencyCount)
    }
    return Status{
        NodeID:      n.id,
        Role:        n.st.role.String(),
        Term:        n.st.currentTerm,
        LogLength:   n.log.Len(),
        CommitIndex: n.st.commitIndex,
        LastApplied: n.st.lastApplied,
        IsLeader:    n.st.role == Leader,
        LeaderID:    n.st.leaderID,
        ClusterSize: n.clusterSize,
        Metrics: Metrics{
            ElectionsStarted:  n.electionsStarted,
            ElectionsWon:      n.electionsWon,
            EntriesReplicated: n.entriesReplicated,
            LeaderChanges:     n.leaderChanges,
            AvgCommitLatency:  avg,
        },
    }
}
