package inmem

import (
    "context"
    "math/rand"
    "sync"
    "time"

    "github.com/amirimatin/go-consensus/pkg/raft"
    "github.com/amirimatin/go-consensus/pkg/transport"
)

// Network is an in-process peer network. Every node attaches a handler
// under its ID; the per-node Transport views route RPCs directly to the
// target handler. Tests and the simulated cluster mode use it to run whole
// clusters inside one process, with optional delivery latency, loss and
// partitions.
type Network struct {
    mu       sync.Mutex
    handlers map[string]transport.Handler
    down     map[string]bool
    latency  time.Duration
    lossRate float64
    rng      *rand.Rand
}

// NewNetwork returns an empty network with reliable, instant delivery.
func NewNetwork() *Network {
    return &Network{
        handlers: make(map[string]transport.Handler),
        down:     make(map[string]bool),
        rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
    }
}

// SetLatency adds a fixed delay to every delivery.
func (n *Network) SetLatency(d time.Duration) {
    n.mu.Lock()
    defer n.mu.Unlock()
    n.latency = d
}

// SetLossRate drops the given fraction of RPCs, 0 through 1.
func (n *Network) SetLossRate(rate float64) {
    n.mu.Lock()
    defer n.mu.Unlock()
    n.lossRate = rate
}

// Disconnect isolates a node: RPCs from and to it fail until Reconnect.
func (n *Network) Disconnect(id string) {
    n.mu.Lock()
    defer n.mu.Unlock()
    n.down[id] = true
}

// Reconnect rejoins a previously disconnected node.
func (n *Network) Reconnect(id string) {
    n.mu.Lock()
    defer n.mu.Unlock()
    delete(n.down, id)
}

// Join attaches a handler and returns the node's transport view.
func (n *Network) Join(id string, h transport.Handler) *Transport {
    n.mu.Lock()
    defer n.mu.Unlock()
    n.handlers[id] = h
    return &Transport{net: n, self: id}
}

func (n *Network) deliverable(from, to string) (transport.Handler, error) {
    n.mu.Lock()
    defer n.mu.Unlock()
    if n.down[from] || n.down[to] {
        return nil, raft.ErrUnreachable
    }
    if n.lossRate > 0 && n.rng.Float64() < n.lossRate {
        return nil, raft.ErrUnreachable
    }
    h, ok := n.handlers[to]
    if !ok || h == nil {
        return nil, raft.ErrUnknownPeer
    }
    return h, nil
}

func (n *Network) delay(ctx context.Context) error {
    n.mu.Lock()
    d := n.latency
    n.mu.Unlock()
    if d <= 0 {
        return nil
    }
    timer := time.NewTimer(d)
    defer timer.Stop()
    select {
    case <-timer.C:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

// Transport is one node's view of the network.
type Transport struct {
    net  *Network
    self string
}

func (t *Transport) RequestVote(ctx context.Context, peer raft.Peer, req *raft.RequestVote) (*raft.RequestVoteResponse, error) {
    h, err := t.net.deliverable(t.self, peer.ID)
    if err != nil {
        return nil, err
    }
    if err := t.net.delay(ctx); err != nil {
        return nil, err
    }
    return h.HandleRequestVote(ctx, req)
}

func (t *Transport) AppendEntries(ctx context.Context, peer raft.Peer, req *raft.AppendEntries) (*raft.AppendEntriesResponse, error) {
    h, err := t.net.deliverable(t.self, peer.ID)
    if err != nil {
        return nil, err
    }
    if err := t.net.delay(ctx); err != nil {
        return nil, err
    }
    return h.HandleAppendEntries(ctx, req)
}

var _ raft.PeerTransport = (*Transport)(nil)
