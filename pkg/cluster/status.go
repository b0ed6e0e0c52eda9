package cluster

import (
    "github.com/amirimatin/go-consensus/pkg/membership"
    "github.com/amirimatin/go-consensus/pkg/raft"
)

// ClusterStatus is a high-level, JSON-serializable snapshot of the cluster
// suitable for external status endpoints and tooling.
type ClusterStatus struct {
    // Healthy indicates whether a leader is known and basic subsystems are running.
    Healthy bool `json:"healthy"`
    // Node is the local consensus view: role, term, log and commit progress.
    Node raft.Status `json:"node"`
    // LeaderAddr is the peer address of the current leader, if known.
    LeaderAddr string `json:"leaderAddr,omitempty"`
    // Members lists the gossip membership view, when a gossip layer runs.
    Members []membership.MemberInfo `json:"members,omitempty"`
    // Warnings contains any non-fatal observations (e.g., unreachable peers).
    Warnings []string `json:"warnings,omitempty"`
}
