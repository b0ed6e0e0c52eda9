package raft

import "errors"

var (
    // ErrStopped is returned when an operation is attempted on a stopped node.
    ErrStopped = errors.New("raft: node stopped")

    // ErrInvalidConfig is returned by Config.Validate.
    ErrInvalidConfig = errors.New("raft: invalid configuration")

    // ErrUnknownPeer is returned by transports when the target node is not
    // part of the configured cluster.
    ErrUnknownPeer = errors.New("raft: unknown peer")

    // ErrUnreachable is returned by transports when a peer cannot be reached
    // within the RPC deadline. The engine treats it as a missing response.
    ErrUnreachable = errors.New("raft: peer unreachable")
)
