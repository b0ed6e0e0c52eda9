package cluster

import (
    "errors"
    "log"

    "github.com/amirimatin/go-consensus/pkg/membership"
    "github.com/amirimatin/go-consensus/pkg/raft"
    "github.com/amirimatin/go-consensus/pkg/transport"
)

type NodeID string

// Options carries dependency-injected components and runtime configuration
// used to assemble the cluster facade. Instances are typically produced from
// bootstrap.Config.
type Options struct {
    // NodeID is the unique identifier of this node within the cluster.
    NodeID NodeID

    // Roster is the full fixed membership, this node included. It never
    // changes during the lifetime of the cluster.
    Roster []membership.Member

    // PeerTransport carries the consensus protocol to other nodes.
    PeerTransport raft.PeerTransport

    // Timing overrides the protocol timers. Zero value means defaults.
    Timing raft.Timing

    // Logger is used by cluster to report operational messages.
    Logger *log.Logger

    // Membership is an optional gossip layer observing roster liveness.
    // It informs status warnings only; the consensus peer set is fixed.
    Membership membership.Membership

    // GossipAddrs are the gossip addresses of the other roster members,
    // used to join the membership layer when one is configured.
    GossipAddrs []string

    // Optional management RPC (for status/submit endpoints and proxying)
    RPCServer transport.RPCServer
    RPCClient transport.RPCClient

    // StateMachine, when set, receives every committed entry in log order.
    StateMachine StateMachine

    // Optional callbacks for app-level hooks
    OnLeaderChange  func(id string, term uint64)
    OnElectionStart func(term uint64)

    // Seed fixes the engine's election randomness; 0 seeds from the clock.
    Seed int64
}

// Validate performs a minimal validation of Options. It does not start any
// network activity and is safe to call before New.
func (o Options) Validate() error {
    if o.NodeID == "" {
        return errors.New("cluster: empty NodeID")
    }
    if len(o.Roster) == 0 {
        return errors.New("cluster: empty roster")
    }
    found := false
    for _, m := range o.Roster {
        if m.ID == string(o.NodeID) {
            found = true
        }
    }
    if !found {
        return errors.New("cluster: NodeID not in roster")
    }
    if o.PeerTransport == nil {
        return errors.New("cluster: nil PeerTransport")
    }
    if o.Logger == nil {
        return errors.New("cluster: nil Logger")
    }
    return nil
}
