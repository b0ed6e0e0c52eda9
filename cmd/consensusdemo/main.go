package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "log"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/amirimatin/go-consensus/pkg/cluster"
    "github.com/amirimatin/go-consensus/pkg/membership"
    "github.com/amirimatin/go-consensus/pkg/raft"
    "github.com/amirimatin/go-consensus/pkg/transport/inmem"
)

// consensusdemo runs a whole cluster inside one process over the in-memory
// network. It elects a leader, replicates a few commands, then isolates the
// leader to show a re-election. Useful for demos and for eyeballing protocol
// behavior without any real networking.
func main() {
    var (
        nodes    = flag.Int("nodes", 3, "cluster size")
        commands = flag.Int("commands", 5, "commands to submit after election")
        latency  = flag.Duration("latency", 0, "simulated per-RPC delivery delay")
        runFor   = flag.Duration("run-for", 10*time.Second, "how long to keep running after the fault demo")
    )
    flag.Parse()

    ctx, cancel := signalContext()
    defer cancel()

    net := inmem.NewNetwork()
    if *latency > 0 { net.SetLatency(*latency) }

    roster := make([]membership.Member, 0, *nodes)
    for i := 1; i <= *nodes; i++ {
        roster = append(roster, membership.Member{ID: fmt.Sprintf("n%d", i), Addr: fmt.Sprintf("inmem:%d", i)})
    }

    cls := make([]*cluster.Cluster, 0, len(roster))
    for _, m := range roster {
        id := m.ID
        tr := net.Join(id, nil)
        cl, err := cluster.New(ctx, cluster.Options{
            NodeID:        cluster.NodeID(id),
            Roster:        roster,
            PeerTransport: tr,
            Logger:        log.New(os.Stderr, "["+id+"] ", log.LstdFlags|log.Lmsgprefix),
            StateMachine: cluster.StateMachineFunc(func(e raft.Entry) {
                fmt.Printf("%s applied index=%d term=%d cmd=%s\n", id, e.Index, e.Term, string(e.Command))
            }),
        })
        if err != nil { log.Fatal(err) }
        net.Join(id, cl.Node())
        if err := cl.Start(ctx); err != nil { log.Fatal(err) }
        defer cl.Close()
        cls = append(cls, cl)
    }

    leader := waitLeader(ctx, cls)
    if leader == nil { return }
    st, _ := leader.Status(ctx)
    fmt.Printf("leader elected: %s term=%d\n", st.Node.NodeID, st.Node.Term)

    for i := 0; i < *commands; i++ {
        cmd, _ := json.Marshal(map[string]any{"op": "set", "key": fmt.Sprintf("k%d", i), "val": i})
        if err := leader.SubmitCommand(ctx, cmd); err != nil {
            log.Printf("submit: %v", err)
        }
    }
    time.Sleep(500 * time.Millisecond)

    fmt.Printf("isolating leader %s to force a re-election\n", st.Node.NodeID)
    net.Disconnect(st.Node.NodeID)
    next := waitLeader(ctx, remaining(cls, st.Node.NodeID))
    if next == nil { return }
    nst, _ := next.Status(ctx)
    fmt.Printf("new leader: %s term=%d\n", nst.Node.NodeID, nst.Node.Term)
    net.Reconnect(st.Node.NodeID)

    select {
    case <-ctx.Done():
    case <-time.After(*runFor):
    }
}

func waitLeader(ctx context.Context, cls []*cluster.Cluster) *cluster.Cluster {
    for {
        for _, cl := range cls {
            if cl.Node().IsLeader() { return cl }
        }
        select {
        case <-ctx.Done():
            return nil
        case <-time.After(20 * time.Millisecond):
        }
    }
}

func remaining(cls []*cluster.Cluster, exclude string) []*cluster.Cluster {
    out := make([]*cluster.Cluster, 0, len(cls))
    for _, cl := range cls {
        if cl.Node().ID() != exclude { out = append(out, cl) }
    }
    return out
}

func signalContext() (context.Context, context.CancelFunc) {
    ctx, cancel := context.WithCancel(context.Background())
    go func() {
        ch := make(chan os.Signal, 1)
        signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
        <-ch
        cancel()
    }()
    return ctx, cancel
}
