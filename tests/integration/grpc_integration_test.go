//go:build integration

package integration

import (
    "context"
    "encoding/json"
    "testing"
    "time"

    "github.com/amirimatin/go-consensus/pkg/bootstrap"
    "github.com/amirimatin/go-consensus/pkg/cluster"
    congrpc "github.com/amirimatin/go-consensus/pkg/transport/grpc"
    "github.com/amirimatin/go-consensus/pkg/transport"
)

const rosterGRPC = "g1@127.0.0.1:9531,g2@127.0.0.1:9532,g3@127.0.0.1:9533"

var addrsGRPC = []string{"127.0.0.1:9531", "127.0.0.1:9532", "127.0.0.1:9533"}

func TestGRPC_ThreeNodes_ElectAndSubmit(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
    defer cancel()

    start := func(id, bind string) *cluster.Cluster {
        c, err := bootstrap.Run(ctx, bootstrap.Config{
            NodeID:    id,
            BindAddr:  bind,
            RosterCSV: rosterGRPC,
            Proto:     "grpc",
        })
        if err != nil { t.Fatalf("%s: %v", id, err) }
        return c
    }
    n1 := start("g1", addrsGRPC[0])
    defer n1.Close()
    n2 := start("g2", addrsGRPC[1])
    defer n2.Close()
    n3 := start("g3", addrsGRPC[2])
    defer n3.Close()

    cli := congrpc.NewClient(3 * time.Second)
    defer cli.Close()

    waitUntil(t, 10*time.Second, func() error {
        for _, addr := range addrsGRPC {
            s, err := fetchStatus(ctx, cli, addr)
            if err != nil { return err }
            if !s.Healthy || s.Node.LeaderID == "" { return errNotYet }
        }
        return nil
    })

    cmd, _ := json.Marshal(map[string]string{"op": "ping"})
    resp, err := cli.PostSubmit(ctx, addrsGRPC[1], transport.SubmitRequest{Command: cmd})
    if err != nil { t.Fatalf("submit: %v", err) }
    if !resp.Accepted { t.Fatalf("submit rejected: %+v", resp) }

    waitUntil(t, 10*time.Second, func() error {
        for _, addr := range addrsGRPC {
            s, err := fetchStatus(ctx, cli, addr)
            if err != nil { return err }
            if s.Node.CommitIndex < 1 { return errNotYet }
        }
        return nil
    })
}
