package cli

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "fmt"
    "log"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/spf13/cobra"

    "github.com/amirimatin/go-consensus/pkg/bootstrap"
    tracing "github.com/amirimatin/go-consensus/pkg/observability/tracing"
    tlsx "github.com/amirimatin/go-consensus/pkg/security/tlsconfig"
    "github.com/amirimatin/go-consensus/pkg/transport"
    congrpc "github.com/amirimatin/go-consensus/pkg/transport/grpc"
    httpjson "github.com/amirimatin/go-consensus/pkg/transport/httpjson"
)

// AddAll attaches consensus subcommands (run/status/submit) to the provided root command.
func AddAll(root *cobra.Command) {
    root.AddCommand(NewRunCmd())
    root.AddCommand(NewStatusCmd())
    root.AddCommand(NewSubmitCmd())
}

// NewConsensusCommand returns a parent command "consensus" containing run/status/submit as subcommands.
func NewConsensusCommand() *cobra.Command {
    parent := &cobra.Command{Use: "consensus", Short: "consensus node commands"}
    parent.AddCommand(NewRunCmd())
    parent.AddCommand(NewStatusCmd())
    parent.AddCommand(NewSubmitCmd())
    return parent
}

// NewRunCmd returns the "run" command used to start a consensus node.
func NewRunCmd() *cobra.Command {
    var (
        id, bindAddr, proto, rosterKind, rosterCSV, filePath, fileEnv string
        gossipBind, gossipAdv, gossipJoin                             string
        rosterRefresh                                                 time.Duration
        electionMin, electionMax, heartbeat                           time.Duration
        seed                                                          int64
        tlsEnable, tlsSkip, traceEnable                               bool
        tlsCA, tlsCert, tlsKey, tlsServerName                         string
    )
    cmd := &cobra.Command{
        Use:   "run",
        Short: "Run a consensus node",
        RunE: func(cmd *cobra.Command, args []string) error {
            if id == "" { return fmt.Errorf("missing -id") }
            ctx, cancel := signalContext()
            defer cancel()

            if traceEnable {
                shutdown, err := tracing.Setup(true)
                if err != nil {
                    log.Printf("tracing setup error: %v", err)
                } else {
                    defer func() { _ = shutdown(context.Background()) }()
                }
            }

            cfg := bootstrap.Config{
                NodeID:        id,
                BindAddr:      bindAddr,
                RosterKind:    rosterKind,
                RosterCSV:     rosterCSV,
                FilePath:      filePath,
                FileEnv:       fileEnv,
                RosterRefresh: rosterRefresh,
                Proto:         proto,
                Seed:          seed,
                GossipBind:    gossipBind,
                GossipAdv:     gossipAdv,
                GossipJoin:    gossipJoin,
                TLSEnable:     tlsEnable,
                TLSCA:         tlsCA,
                TLSCert:       tlsCert,
                TLSKey:        tlsKey,
                TLSServerName: tlsServerName,
                TLSSkipVerify: tlsSkip,
                Logger:        log.Default(),
            }
            if electionMin > 0 { cfg.Timing.ElectionTimeoutMin = electionMin }
            if electionMax > 0 { cfg.Timing.ElectionTimeoutMax = electionMax }
            if heartbeat > 0 { cfg.Timing.HeartbeatInterval = heartbeat }

            cl, err := bootstrap.Run(ctx, cfg)
            if err != nil { return err }
            defer cl.Close()

            fmt.Println("consensus node running. Press Ctrl+C to exit.")
            <-ctx.Done()
            return nil
        },
    }
    cmd.Flags().StringVar(&id, "id", "", "node id (required, must appear in the roster)")
    cmd.Flags().StringVar(&bindAddr, "bind", ":9520", "consensus RPC bind addr (host:port)")
    cmd.Flags().StringVar(&proto, "proto", "grpc", "RPC protocol: grpc|http")
    cmd.Flags().StringVar(&rosterKind, "roster", "static", "roster source: static|file")
    cmd.Flags().StringVar(&rosterCSV, "members", "", "comma-separated roster entries (id@host:port), this node included")
    cmd.Flags().StringVar(&filePath, "file-path", "", "path or glob to a roster file (entries one per line or CSV)")
    cmd.Flags().StringVar(&fileEnv, "file-env", "", "ENV var name containing CSV roster entries; overrides file when set")
    cmd.Flags().DurationVar(&rosterRefresh, "roster-refresh", 5*time.Second, "roster file cache duration")
    cmd.Flags().DurationVar(&electionMin, "election-min", 0, "election timeout lower bound (0 = default 150ms)")
    cmd.Flags().DurationVar(&electionMax, "election-max", 0, "election timeout upper bound (0 = default 300ms)")
    cmd.Flags().DurationVar(&heartbeat, "heartbeat", 0, "leader heartbeat interval (0 = default 50ms)")
    cmd.Flags().Int64Var(&seed, "seed", 0, "election randomness seed (0 = from clock)")
    cmd.Flags().StringVar(&gossipBind, "gossip-bind", "", "gossip liveness bind addr (empty disables gossip)")
    cmd.Flags().StringVar(&gossipAdv, "gossip-adv", "", "gossip advertise addr (host:port, optional)")
    cmd.Flags().StringVar(&gossipJoin, "gossip-join", "", "comma-separated gossip addresses of other members")
    cmd.Flags().BoolVar(&tlsEnable, "tls-enable", false, "enable mTLS for the RPC transport")
    cmd.Flags().StringVar(&tlsCA, "tls-ca", "", "path to CA cert (PEM)")
    cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "path to node certificate (PEM)")
    cmd.Flags().StringVar(&tlsKey, "tls-key", "", "path to node private key (PEM)")
    cmd.Flags().BoolVar(&tlsSkip, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    cmd.Flags().StringVar(&tlsServerName, "tls-server-name", "", "expected server name (for TLS validation)")
    cmd.Flags().BoolVar(&traceEnable, "trace", false, "enable OpenTelemetry stdout tracing (dev)")
    return cmd
}

// NewStatusCmd returns the "status" command.
func NewStatusCmd() *cobra.Command {
    var (
        addr, proto string
        timeout     time.Duration
    )
    cmd := &cobra.Command{
        Use:   "status",
        Short: "Fetch node status as JSON",
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx, cancel := context.WithTimeout(context.Background(), timeout)
            defer cancel()
            client := newClient(proto, timeout, nil)
            data, err := client.GetStatus(ctx, addr)
            if err != nil { return fmt.Errorf("status error: %w", err) }
            os.Stdout.Write(data)
            if len(data) == 0 || data[len(data)-1] != '\n' { os.Stdout.Write([]byte("\n")) }
            return nil
        },
    }
    cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9520", "RPC address of a node (host:port)")
    cmd.Flags().StringVar(&proto, "proto", "grpc", "RPC protocol: grpc|http")
    cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
    return cmd
}

// NewSubmitCmd returns the "submit" command. The command payload is arbitrary
// JSON; nodes forward it to the current leader when needed.
func NewSubmitCmd() *cobra.Command {
    var (
        addr, proto, command                  string
        timeout                               time.Duration
        tlsEnable, tlsSkip                    bool
        tlsCA, tlsCert, tlsKey, tlsServerName string
    )
    cmd := &cobra.Command{
        Use:   "submit",
        Short: "Submit a command to the cluster",
        RunE: func(cmd *cobra.Command, args []string) error {
            if command == "" { return fmt.Errorf("missing required flag: -command") }
            if !json.Valid([]byte(command)) { return fmt.Errorf("command is not valid JSON") }
            var cliTLS *tls.Config
            if tlsEnable {
                topts := tlsx.Options{Enable: true, CAFile: tlsCA, CertFile: tlsCert, KeyFile: tlsKey, InsecureSkipVerify: tlsSkip, ServerName: tlsServerName}
                var err error
                cliTLS, err = topts.Client()
                if err != nil { return fmt.Errorf("tls client config: %w", err) }
            }
            client := newClient(proto, timeout, cliTLS)
            ctx, cancel := context.WithTimeout(context.Background(), timeout)
            defer cancel()
            resp, err := client.PostSubmit(ctx, addr, transport.SubmitRequest{Command: json.RawMessage(command)})
            if err != nil { return fmt.Errorf("submit error: %w", err) }
            return json.NewEncoder(os.Stdout).Encode(resp)
        },
    }
    cmd.Flags().StringVar(&command, "command", "", "JSON command payload (required)")
    cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9520", "RPC address of a node (host:port)")
    cmd.Flags().StringVar(&proto, "proto", "grpc", "RPC protocol: grpc|http")
    cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
    cmd.Flags().BoolVar(&tlsEnable, "tls-enable", false, "enable mTLS for the RPC transport")
    cmd.Flags().StringVar(&tlsCA, "tls-ca", "", "path to CA cert (PEM)")
    cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "path to client certificate (PEM)")
    cmd.Flags().StringVar(&tlsKey, "tls-key", "", "path to client private key (PEM)")
    cmd.Flags().BoolVar(&tlsSkip, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    cmd.Flags().StringVar(&tlsServerName, "tls-server-name", "", "expected server name (for TLS validation)")
    return cmd
}

func newClient(proto string, timeout time.Duration, cfg *tls.Config) transport.RPCClient {
    switch proto {
    case "http":
        c := httpjson.NewClient(timeout)
        if cfg != nil { c.UseTLS(cfg) }
        return c
    default:
        c := congrpc.NewClient(timeout)
        if cfg != nil { c.UseTLS(cfg) }
        return c
    }
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
