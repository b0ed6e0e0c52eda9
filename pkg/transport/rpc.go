package transport

import (
    "context"
    "encoding/json"
)

// StatusFunc returns a JSON-encoded status payload for management /status.
// Using []byte avoids import cycles on cluster types.
type StatusFunc func(ctx context.Context) ([]byte, error)

// SubmitRequest carries an opaque command for replication. Non-leaders
// reject it and report the current leader so callers can redirect.
type SubmitRequest struct {
    Command json.RawMessage `json:"command"`
}

// SubmitResponse indicates acceptance and optionally the leader identity.
// Accepted means the command entered the leader's log; it confirms later
// through the commit index, not through this response.
type SubmitResponse struct {
    Accepted bool   `json:"accepted"`
    Leader   string `json:"leader,omitempty"`
    Error    string `json:"error,omitempty"`
}

// SubmitFunc handles command submissions (leader-only).
type SubmitFunc func(ctx context.Context, req SubmitRequest) (SubmitResponse, error)

// RPCServer hosts the peer protocol and the management endpoints
// (status, submit) on a single listener.
type RPCServer interface {
    Start(ctx context.Context, h Handler, status StatusFunc, submit SubmitFunc) error
    Addr() string
    Stop(ctx context.Context) error
}

// RPCClient performs management calls to other nodes using the chosen
// protocol (HTTP/JSON or gRPC JSON codec).
type RPCClient interface {
    GetStatus(ctx context.Context, addr string) ([]byte, error)
    PostSubmit(ctx context.Context, addr string, req SubmitRequest) (SubmitResponse, error)
}
