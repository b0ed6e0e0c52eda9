//go:build integration

package integration

import (
    "context"
    "encoding/json"
    "testing"
    "time"

    "github.com/amirimatin/go-consensus/pkg/transport"
)

type nodeStatus struct {
    NodeID      string `json:"nodeId"`
    Role        string `json:"role"`
    Term        uint64 `json:"term"`
    CommitIndex uint64 `json:"commitIndex"`
    IsLeader    bool   `json:"isLeader"`
    LeaderID    string `json:"leaderId"`
}

type status struct {
    Healthy    bool       `json:"healthy"`
    Node       nodeStatus `json:"node"`
    LeaderAddr string     `json:"leaderAddr"`
}

var errNotYet = &temporaryError{}

type temporaryError struct{}

func (e *temporaryError) Error() string { return "not yet" }

func waitUntil(t *testing.T, timeout time.Duration, fn func() error) {
    t.Helper()
    deadline := time.Now().Add(timeout)
    var last error
    for time.Now().Before(deadline) {
        if err := fn(); err == nil {
            return
        } else {
            last = err
        }
        time.Sleep(200 * time.Millisecond)
    }
    t.Fatalf("timeout waiting for condition: %v", last)
}

func fetchStatus(ctx context.Context, cli transport.RPCClient, addr string) (status, error) {
    var s status
    b, err := cli.GetStatus(ctx, addr)
    if err != nil { return s, err }
    if err := json.Unmarshal(b, &s); err != nil { return s, err }
    return s, nil
}
