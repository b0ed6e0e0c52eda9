//go:build integration

package integration

import (
    "context"
    "encoding/json"
    "testing"
    "time"

    "github.com/amirimatin/go-consensus/pkg/bootstrap"
    "github.com/amirimatin/go-consensus/pkg/cluster"
    "github.com/amirimatin/go-consensus/pkg/transport"
    httpjson "github.com/amirimatin/go-consensus/pkg/transport/httpjson"
)

const roster3 = "n1@127.0.0.1:9521,n2@127.0.0.1:9522,n3@127.0.0.1:9523"

var addrs3 = []string{"127.0.0.1:9521", "127.0.0.1:9522", "127.0.0.1:9523"}

func mustStartThreeNodes(t *testing.T, ctx context.Context) (n1, n2, n3 *cluster.Cluster) {
    t.Helper()
    start := func(id, bind string) *cluster.Cluster {
        c, err := bootstrap.Run(ctx, bootstrap.Config{
            NodeID:    id,
            BindAddr:  bind,
            RosterCSV: roster3,
            Proto:     "http",
        })
        if err != nil { t.Fatalf("%s: %v", id, err) }
        return c
    }
    return start("n1", addrs3[0]), start("n2", addrs3[1]), start("n3", addrs3[2])
}

func TestThreeNodes_ElectAndStatus(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
    defer cancel()

    n1, n2, n3 := mustStartThreeNodes(t, ctx)
    defer n3.Close()
    defer n2.Close()
    defer n1.Close()

    cli := httpjson.NewClient(3 * time.Second)

    // Every node should converge on the same healthy leader.
    waitUntil(t, 10*time.Second, func() error {
        leader := ""
        for _, addr := range addrs3 {
            s, err := fetchStatus(ctx, cli, addr)
            if err != nil { return err }
            if !s.Healthy || s.Node.LeaderID == "" { return errNotYet }
            if leader == "" {
                leader = s.Node.LeaderID
            } else if s.Node.LeaderID != leader {
                return errNotYet
            }
        }
        return nil
    })
}

func TestThreeNodes_SubmitForwardsToLeader(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
    defer cancel()

    n1, n2, n3 := mustStartThreeNodes(t, ctx)
    defer n3.Close()
    defer n2.Close()
    defer n1.Close()

    cli := httpjson.NewClient(3 * time.Second)
    waitUntil(t, 10*time.Second, func() error {
        s, err := fetchStatus(ctx, cli, addrs3[0])
        if err != nil { return err }
        if !s.Healthy { return errNotYet }
        return nil
    })

    // Submit through every node; followers must forward to the leader.
    const cmds = 3
    for i, addr := range addrs3 {
        cmd, _ := json.Marshal(map[string]int{"seq": i})
        resp, err := cli.PostSubmit(ctx, addr, transport.SubmitRequest{Command: cmd})
        if err != nil { t.Fatalf("submit via %s: %v", addr, err) }
        if !resp.Accepted { t.Fatalf("submit via %s rejected: %+v", addr, resp) }
    }

    // All nodes converge on a commit index covering the submitted commands.
    waitUntil(t, 10*time.Second, func() error {
        for _, addr := range addrs3 {
            s, err := fetchStatus(ctx, cli, addr)
            if err != nil { return err }
            if s.Node.CommitIndex < cmds { return errNotYet }
        }
        return nil
    })
}
