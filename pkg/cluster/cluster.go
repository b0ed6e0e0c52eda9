package cluster

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/go-consensus/pkg/internal/logutil"
    "github.com/amirimatin/go-consensus/pkg/membership"
    obsmetrics "github.com/amirimatin/go-consensus/pkg/observability/metrics"
    "github.com/amirimatin/go-consensus/pkg/raft"
    "github.com/amirimatin/go-consensus/pkg/transport"
)

// Facade exposes the high-level API for consumers.
type Facade interface {
    Start(ctx context.Context) error
    SubmitCommand(ctx context.Context, cmd json.RawMessage) error
    Status(ctx context.Context) (*ClusterStatus, error)
    Stop(ctx context.Context) error
}

// Cluster is the concrete implementation of the Facade. It wires together
// the consensus engine, the optional gossip liveness layer, the management
// RPC surface and application callbacks into a small embeddable runtime.
type Cluster struct {
    opts Options
    mu   sync.RWMutex
    run  struct {
        started bool
        closed  bool
    }
    node *raft.Node
    mem  membership.Membership
    rpcS transport.RPCServer
    rpcC transport.RPCClient
    obs  *raft.ChanObserver
    eb   eventBus

    live struct {
        mu    sync.Mutex
        alive map[string]bool
    }

    cancel context.CancelFunc
}

// New constructs a new Cluster instance from validated options. It performs no
// network activity; call Start to launch the node.
func New(ctx context.Context, opts Options) (*Cluster, error) {
    if err := opts.Validate(); err != nil {
        return nil, err
    }
    c := &Cluster{opts: opts, mem: opts.Membership, rpcS: opts.RPCServer, rpcC: opts.RPCClient}
    c.obs = raft.NewChanObserver(256)
    c.live.alive = make(map[string]bool)

    members := make([]raft.Peer, len(opts.Roster))
    for i, m := range opts.Roster {
        members[i] = raft.Peer{ID: m.ID, Addr: m.Addr}
    }
    var apply func(raft.Entry)
    if opts.StateMachine != nil {
        apply = opts.StateMachine.Apply
    }
    node, err := raft.New(raft.Config{
        ID:       string(opts.NodeID),
        Members:  members,
        Timing:   opts.Timing,
        Logger:   engineLogger{l: opts.Logger},
        Observer: c.obs,
        Apply:    apply,
        Seed:     opts.Seed,
    }, opts.PeerTransport)
    if err != nil {
        return nil, err
    }
    c.node = node
    return c, nil
}

// Node exposes the underlying consensus engine, mainly for transports that
// need the inbound protocol handler.
func (c *Cluster) Node() *raft.Node { return c.node }

// Close is a convenience alias for Stop with a background context.
func (c *Cluster) Close() error {
    return c.Stop(context.Background())
}

// Start launches the consensus engine, the optional gossip layer and the
// management endpoint, then begins the internal observation loops.
func (c *Cluster) Start(ctx context.Context) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.run.started {
        return nil
    }
    c.run.started = true
    // Register metrics once
    obsmetrics.Register()

    ctx, c.cancel = context.WithCancel(ctx)

    if err := c.node.Start(ctx); err != nil {
        return err
    }
    go c.observeLoop(ctx)
    go c.metricsLoop(ctx)

    // Start gossip liveness and join the fixed roster peers
    if c.mem != nil {
        if err := c.mem.Start(ctx); err != nil {
            return err
        }
        if len(c.opts.GossipAddrs) > 0 {
            logutil.Infof(c.opts.Logger, "joining gossip peers: %v", c.opts.GossipAddrs)
            _ = c.mem.Join(c.opts.GossipAddrs)
        }
        go c.membershipEventsLoop(ctx)
    }

    // Start management RPC server (if configured)
    if c.rpcS != nil {
        statusFn := func(ctx context.Context) ([]byte, error) { return c.statusLocalJSON(ctx) }
        submitFn := func(ctx context.Context, req transport.SubmitRequest) (transport.SubmitResponse, error) {
            return c.handleSubmit(ctx, req)
        }
        if err := c.rpcS.Start(ctx, c.node, statusFn, submitFn); err != nil {
            return err
        }
        logutil.Infof(c.opts.Logger, "endpoint listening at %s (consensus/status/submit)", c.rpcS.Addr())
    }
    return nil
}

// SubmitCommand replicates a command through the cluster. On the leader it
// enters the log directly; on a follower it is forwarded to the leader's
// management endpoint when an RPC client is configured. Acceptance means the
// command is in the leader's log; commitment confirms later through the
// commit index and the EntryCommitted event.
func (c *Cluster) SubmitCommand(ctx context.Context, cmd json.RawMessage) error {
    if c.node.SubmitCommand(cmd) {
        obsmetrics.SubmitRequests.WithLabelValues("accepted").Inc()
        return nil
    }
    leaderID := c.node.Leader()
    if leaderID == "" {
        obsmetrics.SubmitRequests.WithLabelValues("no_leader").Inc()
        return ErrNoLeader
    }
    if c.rpcC == nil {
        obsmetrics.SubmitRequests.WithLabelValues("rejected").Inc()
        return ErrNotLeader
    }
    addr := c.peerAddr(leaderID)
    if addr == "" {
        obsmetrics.SubmitRequests.WithLabelValues("no_leader").Inc()
        return ErrNoLeader
    }
    resp, err := c.rpcC.PostSubmit(ctx, addr, transport.SubmitRequest{Command: cmd})
    if err != nil {
        obsmetrics.SubmitRequests.WithLabelValues("forward_error").Inc()
        return err
    }
    if !resp.Accepted {
        obsmetrics.SubmitRequests.WithLabelValues("rejected").Inc()
        if resp.Error != "" {
            return fmt.Errorf("cluster: submit rejected: %s", resp.Error)
        }
        return ErrNotLeader
    }
    obsmetrics.SubmitRequests.WithLabelValues("forwarded").Inc()
    return nil
}

// Status returns a synthesized snapshot of the local consensus view plus the
// gossip membership view and liveness warnings for unreachable peers.
func (c *Cluster) Status(ctx context.Context) (*ClusterStatus, error) {
    ns := c.node.Status()
    s := &ClusterStatus{
        Node:    ns,
        Healthy: ns.LeaderID != "",
    }
    if ns.LeaderID != "" {
        s.LeaderAddr = c.peerAddr(ns.LeaderID)
    }
    if c.mem != nil {
        s.Members = c.mem.Members()
        s.Warnings = append(s.Warnings, c.livenessWarnings()...)
        if hr, ok := c.mem.(membership.HealthReporter); ok {
            if score := hr.HealthScore(); score > 0 {
                s.Warnings = append(s.Warnings, fmt.Sprintf("gossip health score %d", score))
            }
        }
    }
    return s, nil
}

// Stop gracefully shuts down the engine, the gossip layer and the endpoint.
func (c *Cluster) Stop(ctx context.Context) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.run.closed {
        return nil
    }
    c.run.closed = true
    if c.cancel != nil {
        c.cancel()
    }
    c.node.Stop()
    if c.mem != nil {
        _ = c.mem.Leave()
        _ = c.mem.Stop()
    }
    if c.rpcS != nil {
        _ = c.rpcS.Stop(ctx)
    }
    return nil
}

// observeLoop bridges engine events to metrics, the event bus and app hooks.
func (c *Cluster) observeLoop(ctx context.Context) {
    for {
        select {
        case <-ctx.Done():
            return
        case ev := <-c.obs.C:
            switch ev.Type {
            case raft.EventElectionStarted:
                obsmetrics.ElectionsStarted.Inc()
                c.eb.publish(Event{Type: EventElectionStarted, At: ev.At, NodeID: ev.NodeID, Term: ev.Term})
                if c.opts.OnElectionStart != nil {
                    c.opts.OnElectionStart(ev.Term)
                }
            case raft.EventElectionWon:
                obsmetrics.ElectionsWon.Inc()
                obsmetrics.LeaderChanges.Inc()
                logutil.Infof(c.opts.Logger, "leadership won: id=%s term=%d", ev.NodeID, ev.Term)
                c.eb.publish(Event{Type: EventLeaderElected, At: ev.At, NodeID: ev.NodeID, Term: ev.Term})
                if c.opts.OnLeaderChange != nil {
                    c.opts.OnLeaderChange(ev.NodeID, ev.Term)
                }
            case raft.EventTermAdvanced:
                c.eb.publish(Event{Type: EventTermAdvanced, At: ev.At, NodeID: ev.NodeID, Term: ev.Term})
            case raft.EventEntryCommitted:
                obsmetrics.EntriesCommitted.Inc()
                if ev.Latency > 0 {
                    obsmetrics.CommitLatency.Observe(ev.Latency.Seconds())
                }
                c.eb.publish(Event{Type: EventEntryCommitted, At: ev.At, NodeID: ev.NodeID, Term: ev.Term, Index: ev.Index})
            case raft.EventRoleChanged:
                if ev.Role == raft.Leader {
                    obsmetrics.IsLeader.Set(1)
                } else {
                    obsmetrics.IsLeader.Set(0)
                }
            }
        }
    }
}

// metricsLoop refreshes the slow-moving gauges from the node snapshot.
func (c *Cluster) metricsLoop(ctx context.Context) {
    ticker := time.NewTicker(time.Second)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            st := c.node.Status()
            obsmetrics.CurrentTerm.Set(float64(st.Term))
            obsmetrics.CommitIndex.Set(float64(st.CommitIndex))
            obsmetrics.LogLength.Set(float64(st.LogLength))
            if st.IsLeader {
                obsmetrics.IsLeader.Set(1)
            } else {
                obsmetrics.IsLeader.Set(0)
            }
        }
    }
}

func (c *Cluster) membershipEventsLoop(ctx context.Context) {
    evch := c.mem.Events()
    for {
        select {
        case <-ctx.Done():
            return
        case e, ok := <-evch:
            if !ok {
                return
            }
            if !c.inRoster(e.Member.ID) {
                continue
            }
            switch e.Type {
            case membership.EventJoin:
                c.setAlive(e.Member.ID, true)
                m := e.Member
                c.eb.publish(Event{Type: EventMemberAlive, At: e.At, Member: &m})
            case membership.EventLeave, membership.EventFailed:
                c.setAlive(e.Member.ID, false)
                logutil.Warnf(c.opts.Logger, "peer unreachable per gossip: id=%s", e.Member.ID)
                m := e.Member
                c.eb.publish(Event{Type: EventMemberFailed, At: e.At, Member: &m})
            }
        }
    }
}

func (c *Cluster) setAlive(id string, up bool) {
    c.live.mu.Lock()
    c.live.alive[id] = up
    c.live.mu.Unlock()
    v := 0.0
    if up {
        v = 1
    }
    obsmetrics.PeerLiveness.WithLabelValues(id).Set(v)
}

func (c *Cluster) livenessWarnings() []string {
    c.live.mu.Lock()
    defer c.live.mu.Unlock()
    var out []string
    for _, m := range c.opts.Roster {
        if m.ID == string(c.opts.NodeID) {
            continue
        }
        if up, seen := c.live.alive[m.ID]; seen && !up {
            out = append(out, fmt.Sprintf("peer %s unreachable", m.ID))
        }
    }
    return out
}

func (c *Cluster) inRoster(id string) bool {
    for _, m := range c.opts.Roster {
        if m.ID == id {
            return true
        }
    }
    return false
}

func (c *Cluster) peerAddr(id string) string {
    for _, m := range c.opts.Roster {
        if m.ID == id {
            return m.Addr
        }
    }
    return ""
}

func (c *Cluster) statusLocalJSON(ctx context.Context) ([]byte, error) {
    st, err := c.Status(ctx)
    if err != nil {
        return nil, err
    }
    return json.Marshal(st)
}

func (c *Cluster) handleSubmit(ctx context.Context, req transport.SubmitRequest) (transport.SubmitResponse, error) {
    if c.node.SubmitCommand(req.Command) {
        obsmetrics.SubmitRequests.WithLabelValues("accepted").Inc()
        return transport.SubmitResponse{Accepted: true}, nil
    }
    leader := c.node.Leader()
    if leader != "" && leader != string(c.opts.NodeID) && c.rpcC != nil {
        if addr := c.peerAddr(leader); addr != "" {
            resp, err := c.rpcC.PostSubmit(ctx, addr, req)
            if err == nil {
                obsmetrics.SubmitRequests.WithLabelValues("forwarded").Inc()
                return resp, nil
            }
            obsmetrics.SubmitRequests.WithLabelValues("forward_error").Inc()
            return transport.SubmitResponse{Accepted: false, Leader: leader, Error: err.Error()}, nil
        }
    }
    obsmetrics.SubmitRequests.WithLabelValues("rejected").Inc()
    logutil.Warnf(c.opts.Logger, "submit rejected (not leader): leader=%s", leader)
    return transport.SubmitResponse{Accepted: false, Leader: leader, Error: "not leader"}, nil
}

// engineLogger adapts the standard logger to the engine's leveled surface.
type engineLogger struct{ l *log.Logger }

func (e engineLogger) Debug(msg string, args ...interface{}) { logutil.Debugf(e.l, "%s%s", msg, kvPairs(args)) }
func (e engineLogger) Info(msg string, args ...interface{})  { logutil.Infof(e.l, "%s%s", msg, kvPairs(args)) }
func (e engineLogger) Warn(msg string, args ...interface{})  { logutil.Warnf(e.l, "%s%s", msg, kvPairs(args)) }
func (e engineLogger) Error(msg string, args ...interface{}) { logutil.Errorf(e.l, "%s%s", msg, kvPairs(args)) }

func kvPairs(args []interface{}) string {
    if len(args) == 0 {
        return ""
    }
    var b strings.Builder
    for i := 0; i+1 < len(args); i += 2 {
        fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
    }
    return b.String()
}
