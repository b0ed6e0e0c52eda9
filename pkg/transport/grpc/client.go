package grpc

import (
    "context"
    "crypto/tls"
    "errors"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/backoff"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/credentials/insecure"
    "google.golang.org/grpc/keepalive"

    "github.com/amirimatin/go-consensus/pkg/raft"
    "github.com/amirimatin/go-consensus/pkg/transport"
)

// Client is the outbound side: it implements raft.PeerTransport for the
// peer protocol and transport.RPCClient for management calls, sharing one
// connection cache.
type Client struct {
    timeout time.Duration
    tlsCfg  *tls.Config
    cm      *ConnManager
}

func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    c := &Client{timeout: timeout}
    c.cm = NewConnManager(30*time.Second, c.dialCtx)
    return c
}

func (c *Client) dialCtx(ctx context.Context, target string) (*grpc.ClientConn, error) {
    // Use JSON codec and set content subtype accordingly.
    opts := []grpc.DialOption{
        grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype("json")),
        grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig, MinConnectTimeout: 500 * time.Millisecond}),
        grpc.WithKeepaliveParams(keepalive.ClientParameters{Time: 20 * time.Second, Timeout: 5 * time.Second, PermitWithoutStream: true}),
        grpc.WithBlock(),
    }
    if c.tlsCfg != nil {
        opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(c.tlsCfg)))
    } else {
        opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
    }
    return grpc.DialContext(ctx, target, opts...)
}

// RequestVote forwards a vote request to peer. The caller's context carries
// the deadline; the consensus engine treats any error as a missing vote.
func (c *Client) RequestVote(ctx context.Context, peer raft.Peer, req *raft.RequestVote) (*raft.RequestVoteResponse, error) {
    cc, rel, err := c.getConn(ctx, peer.Addr)
    if err != nil { return nil, err }
    defer rel()
    out := new(raft.RequestVoteResponse)
    if err := cc.Invoke(ctx, "/consensus.v1.Consensus/RequestVote", req, out); err != nil { return nil, err }
    return out, nil
}

// AppendEntries forwards replication traffic to peer.
func (c *Client) AppendEntries(ctx context.Context, peer raft.Peer, req *raft.AppendEntries) (*raft.AppendEntriesResponse, error) {
    cc, rel, err := c.getConn(ctx, peer.Addr)
    if err != nil { return nil, err }
    defer rel()
    out := new(raft.AppendEntriesResponse)
    if err := cc.Invoke(ctx, "/consensus.v1.Consensus/AppendEntries", req, out); err != nil { return nil, err }
    return out, nil
}

func (c *Client) GetStatus(ctx context.Context, addr string) ([]byte, error) {
    cctx, cancel := context.WithTimeout(ctx, c.timeout)
    defer cancel()
    cc, rel, err := c.getConn(cctx, addr)
    if err != nil { return nil, err }
    defer rel()
    out := new(statusBlob)
    if err := cc.Invoke(cctx, "/consensus.v1.Consensus/GetStatus", &empty{}, out); err != nil { return nil, err }
    return out.Data, nil
}

func (c *Client) PostSubmit(ctx context.Context, addr string, req transport.SubmitRequest) (transport.SubmitResponse, error) {
    cctx, cancel := context.WithTimeout(ctx, c.timeout)
    defer cancel()
    var resp transport.SubmitResponse
    cc, rel, err := c.getConn(cctx, addr)
    if err != nil { return resp, err }
    defer rel()
    if err := cc.Invoke(cctx, "/consensus.v1.Consensus/Submit", &req, &resp); err != nil { return resp, err }
    if resp.Error != "" { return resp, errors.New(resp.Error) }
    return resp, nil
}

var _ raft.PeerTransport = (*Client)(nil)
var _ transport.RPCClient = (*Client)(nil)

// UseTLS sets TLS config for the client.
func (c *Client) UseTLS(cfg *tls.Config) *Client { c.tlsCfg = cfg; return c }

// Close releases all cached connections.
func (c *Client) Close() {
    if c.cm != nil { c.cm.Close() }
}

// getConn returns a managed connection from the shared cache.
func (c *Client) getConn(ctx context.Context, addr string) (*grpc.ClientConn, func(), error) {
    return c.cm.Get(ctx, addr)
}
