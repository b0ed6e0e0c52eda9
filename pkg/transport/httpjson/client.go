package httpjson

import (
    "bytes"
    "context"
    "crypto/tls"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/amirimatin/go-consensus/pkg/raft"
    "github.com/amirimatin/go-consensus/pkg/transport"
)

// Client is a thin HTTP client for the peer protocol and the management
// API. Management calls retry with backoff; peer protocol calls are single
// shot because the consensus engine owns retransmission.
type Client struct {
    httpc     *http.Client
    transport *http.Transport
    isTLS     bool
}

// NewClient constructs a new Client with the given timeout.
func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    tr := &http.Transport{}
    return &Client{httpc: &http.Client{Timeout: timeout, Transport: tr}, transport: tr}
}

// UseTLS sets the TLS config for the underlying HTTP client and switches the
// request scheme to https.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
    if c.transport != nil { c.transport.TLSClientConfig = cfg }
    c.isTLS = cfg != nil
    return c
}

func (c *Client) scheme() string {
    if c.isTLS { return "https" }
    return "http"
}

// postOnce POSTs a JSON body and decodes the JSON response, no retries.
func (c *Client) postOnce(ctx context.Context, url string, in, out interface{}) error {
    body, err := json.Marshal(in)
    if err != nil { return err }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
    if err != nil { return err }
    req.Header.Set("Content-Type", "application/json")
    resp, err := c.httpc.Do(req)
    if err != nil { return err }
    defer resp.Body.Close()
    b, _ := io.ReadAll(resp.Body)
    if resp.StatusCode != http.StatusOK {
        return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
    }
    return json.Unmarshal(b, out)
}

// RequestVote sends a vote request to the peer's /vote endpoint.
func (c *Client) RequestVote(ctx context.Context, peer raft.Peer, req *raft.RequestVote) (*raft.RequestVoteResponse, error) {
    out := new(raft.RequestVoteResponse)
    url := fmt.Sprintf("%s://%s/vote", c.scheme(), peer.Addr)
    if err := c.postOnce(ctx, url, req, out); err != nil { return nil, err }
    return out, nil
}

// AppendEntries sends replication traffic to the peer's /append endpoint.
func (c *Client) AppendEntries(ctx context.Context, peer raft.Peer, req *raft.AppendEntries) (*raft.AppendEntriesResponse, error) {
    out := new(raft.AppendEntriesResponse)
    url := fmt.Sprintf("%s://%s/append", c.scheme(), peer.Addr)
    if err := c.postOnce(ctx, url, req, out); err != nil { return nil, err }
    return out, nil
}

func (c *Client) GetStatus(ctx context.Context, addr string) ([]byte, error) {
    url := fmt.Sprintf("%s://%s/status", c.scheme(), addr)
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
        if err != nil { return nil, err }
        resp, err := c.httpc.Do(req)
        if err != nil {
            lastErr = err
        } else {
            b, readErr := io.ReadAll(resp.Body)
            resp.Body.Close()
            if resp.StatusCode != http.StatusOK {
                lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
            } else if readErr != nil {
                lastErr = readErr
            } else {
                return b, nil
            }
        }
        // backoff unless context is done
        select {
        case <-ctx.Done():
            return nil, ctx.Err()
        case <-time.After(time.Duration(100*(1<<attempt)) * time.Millisecond):
        }
    }
    return nil, lastErr
}

func (c *Client) PostSubmit(ctx context.Context, addr string, req transport.SubmitRequest) (transport.SubmitResponse, error) {
    url := fmt.Sprintf("%s://%s/submit", c.scheme(), addr)
    var out transport.SubmitResponse
    body, err := json.Marshal(req)
    if err != nil { return out, err }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
        if err != nil { return out, err }
        httpReq.Header.Set("Content-Type", "application/json")
        resp, err := c.httpc.Do(httpReq)
        if err != nil {
            lastErr = err
        } else {
            func() {
                defer resp.Body.Close()
                b, _ := io.ReadAll(resp.Body)
                _ = json.Unmarshal(b, &out)
                if resp.StatusCode != http.StatusOK {
                    if out.Error != "" {
                        lastErr = errors.New(out.Error)
                    } else {
                        lastErr = fmt.Errorf("submit status %d: %s", resp.StatusCode, string(b))
                    }
                } else {
                    lastErr = nil
                }
            }()
            if lastErr == nil { return out, nil }
        }
        // backoff unless context is done
        select {
        case <-ctx.Done():
            if lastErr == nil { lastErr = ctx.Err() }
            return out, lastErr
        case <-time.After(time.Duration(100*(1<<attempt)) * time.Millisecond):
        }
    }
    return out, lastErr
}

var _ transport.RPCClient = (*Client)(nil)
var _ raft.PeerTransport = (*Client)(nil)
