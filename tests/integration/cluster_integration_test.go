//go:build integration

package integration

import (
    "context"
    "testing"
    "time"

    "github.com/amirimatin/go-consensus/pkg/cluster"
    httpjson "github.com/amirimatin/go-consensus/pkg/transport/httpjson"
)

func TestLeaderChange_OnLeaderStopElectNewLeader(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
    defer cancel()

    n1, n2, n3 := mustStartThreeNodes(t, ctx)
    nodes := map[string]*cluster.Cluster{"n1": n1, "n2": n2, "n3": n3}
    defer n3.Close()
    defer n2.Close()
    defer n1.Close()

    cli := httpjson.NewClient(3 * time.Second)

    var leaderID string
    waitUntil(t, 10*time.Second, func() error {
        s, err := fetchStatus(ctx, cli, addrs3[0])
        if err != nil { return err }
        if !s.Healthy || s.Node.LeaderID == "" { return errNotYet }
        leaderID = s.Node.LeaderID
        return nil
    })

    // Stop the leader to force a re-election among the survivors.
    _ = nodes[leaderID].Close()
    survivors := make([]string, 0, 2)
    for i, addr := range addrs3 {
        id := []string{"n1", "n2", "n3"}[i]
        if id != leaderID { survivors = append(survivors, addr) }
    }

    waitUntil(t, 15*time.Second, func() error {
        for _, addr := range survivors {
            s, err := fetchStatus(ctx, cli, addr)
            if err != nil { return err }
            if s.Node.LeaderID == "" || s.Node.LeaderID == leaderID { return errNotYet }
        }
        return nil
    })
}
