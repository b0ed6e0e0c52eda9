package bootstrap

import (
    "context"
    "crypto/tls"
    "fmt"
    "log"
    "time"

    "github.com/amirimatin/go-consensus/pkg/cluster"
    "github.com/amirimatin/go-consensus/pkg/discovery"
    dFile "github.com/amirimatin/go-consensus/pkg/discovery/file"
    dStatic "github.com/amirimatin/go-consensus/pkg/discovery/static"
    "github.com/amirimatin/go-consensus/pkg/membership"
    ml "github.com/amirimatin/go-consensus/pkg/membership/memberlist"
    "github.com/amirimatin/go-consensus/pkg/raft"
    tlsx "github.com/amirimatin/go-consensus/pkg/security/tlsconfig"
    "github.com/amirimatin/go-consensus/pkg/transport"
    congrpc "github.com/amirimatin/go-consensus/pkg/transport/grpc"
    "github.com/amirimatin/go-consensus/pkg/transport/httpjson"
)

// Config defines high-level inputs to assemble a consensus node with sensible
// defaults. Applications embed the node by providing this structure and
// calling Build/Run.
type Config struct {
    // Identity and consensus RPC bind address (host:port). The address must
    // match this node's roster entry so peers can reach it.
    NodeID   string
    BindAddr string

    // Roster settings. The roster is the fixed cluster membership as
    // "id@host:port" entries; it includes this node.
    RosterKind    string        // "static" (default) or "file"
    RosterCSV     string        // used when RosterKind=static
    FilePath      string        // used when kind=file
    FileEnv       string        // used when kind=file
    RosterRefresh time.Duration // cache/refresh duration for file rosters

    // Proto selects the RPC stack: "grpc" (default) or "http".
    Proto string

    // RPCTimeout bounds management calls (status/submit forwarding).
    // Zero means 3s.
    RPCTimeout time.Duration

    // Timing overrides the protocol timers. Zero value means defaults.
    Timing raft.Timing

    // Seed fixes election randomness for reproducible runs; 0 uses the clock.
    Seed int64

    // Gossip liveness (optional). When GossipBind is set a memberlist layer
    // observes roster liveness; it never changes the consensus peer set.
    GossipBind string
    GossipAdv  string
    GossipJoin string // comma-separated gossip addresses of other members

    // TLS (optional) for the RPC listener and clients
    TLSEnable     bool
    TLSCA         string
    TLSCert       string
    TLSKey        string
    TLSServerName string
    TLSSkipVerify bool

    // Logger (optional). If nil, log.Default() is used.
    Logger *log.Logger

    // StateMachine receives committed commands in log order (optional).
    StateMachine cluster.StateMachine

    // Optional callbacks
    OnLeaderChange  func(id string, term uint64)
    OnElectionStart func(term uint64)
}

// Build assembles a cluster.Cluster from Config without starting it.
func Build(cfg Config) (*cluster.Cluster, error) {
    if cfg.Logger == nil { cfg.Logger = log.Default() }
    if cfg.RPCTimeout <= 0 { cfg.RPCTimeout = 3 * time.Second }

    // Roster source
    var disc discovery.Discovery
    switch cfg.RosterKind {
    case "file":
        opts := dFile.Options{Path: cfg.FilePath, Env: cfg.FileEnv}
        if cfg.RosterRefresh > 0 { opts.Refresh = cfg.RosterRefresh }
        disc = dFile.New(opts)
    default:
        disc = dStatic.New(dStatic.Parse(cfg.RosterCSV)...)
    }
    roster, err := membership.ParseRoster(disc.Entries())
    if err != nil {
        return nil, fmt.Errorf("bootstrap: roster: %w", err)
    }

    // TLS (hot-reload configs allow rotation by replacing files)
    var srvTLS, cliTLS *tls.Config
    if cfg.TLSEnable {
        topts := tlsx.Options{Enable: true, CAFile: cfg.TLSCA, CertFile: cfg.TLSCert, KeyFile: cfg.TLSKey, InsecureSkipVerify: cfg.TLSSkipVerify, ServerName: cfg.TLSServerName}
        if srvTLS, err = topts.ServerHotReload(); err != nil { return nil, err }
        if cliTLS, err = topts.ClientHotReload(); err != nil { return nil, err }
    }

    // RPC stack. The client doubles as the peer transport for the engine and
    // as the management client used to forward submits to the leader.
    var srv transport.RPCServer
    var cli transport.RPCClient
    var pt raft.PeerTransport
    switch cfg.Proto {
    case "http":
        s := httpjson.NewServer(cfg.BindAddr, cfg.Logger)
        if srvTLS != nil { s.UseTLS(srvTLS) }
        c := httpjson.NewClient(cfg.RPCTimeout)
        if cliTLS != nil { c.UseTLS(cliTLS) }
        srv, cli, pt = s, c, c
    default:
        s := congrpc.NewServer(cfg.BindAddr)
        if srvTLS != nil { s.UseTLS(srvTLS) }
        c := congrpc.NewClient(cfg.RPCTimeout)
        if cliTLS != nil { c.UseTLS(cliTLS) }
        srv, cli, pt = s, c, c
    }

    // Gossip liveness (optional)
    var mem membership.Membership
    var joins []string
    if cfg.GossipBind != "" {
        meta := map[string]string{"rpc": cfg.BindAddr}
        mem, err = ml.New(ml.Options{NodeID: cfg.NodeID, Bind: cfg.GossipBind, Advertise: cfg.GossipAdv, Logger: cfg.Logger, Meta: meta})
        if err != nil { return nil, err }
        joins = dStatic.Parse(cfg.GossipJoin)
    }

    opts := cluster.Options{
        NodeID:          cluster.NodeID(cfg.NodeID),
        Roster:          roster,
        PeerTransport:   pt,
        Timing:          cfg.Timing,
        Logger:          cfg.Logger,
        Membership:      mem,
        GossipAddrs:     joins,
        RPCServer:       srv,
        RPCClient:       cli,
        StateMachine:    cfg.StateMachine,
        OnLeaderChange:  cfg.OnLeaderChange,
        OnElectionStart: cfg.OnElectionStart,
        Seed:            cfg.Seed,
    }
    return cluster.New(context.Background(), opts)
}

// Run builds and starts the node, returning the instance for lifecycle
// control. The caller is responsible for calling Stop when finished.
func Run(ctx context.Context, cfg Config) (*cluster.Cluster, error) {
    cl, err := Build(cfg)
    if err != nil { return nil, err }
    if err := cl.Start(ctx); err != nil { return nil, err }
    return cl, nil
}
