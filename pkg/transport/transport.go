package transport

import (
    "context"

    "github.com/amirimatin/go-consensus/pkg/raft"
)

// Handler is the inbound side of the consensus protocol: the local node's
// entry points the server delegates peer RPCs to. *raft.Node satisfies it.
type Handler interface {
    HandleRequestVote(ctx context.Context, req *raft.RequestVote) (*raft.RequestVoteResponse, error)
    HandleAppendEntries(ctx context.Context, req *raft.AppendEntries) (*raft.AppendEntriesResponse, error)
}

// Transport exposes the local advertised address of a transport endpoint
// (e.g., the consensus bind address).
type Transport interface {
    // Addr returns the local bind/advertise address if applicable.
    Addr() string
}
