package raft

import (
    "context"
    "encoding/json"
    "math/rand"
    "sync"
    "sync/atomic"
    "time"

    "github.com/google/uuid"
)

// Logger is the minimal leveled logging surface the engine emits to. The
// default is a no-op; callers inject their own sink.
type Logger interface {
    Debug(msg string, args ...interface{})
    Info(msg string, args ...interface{})
    Warn(msg string, args ...interface{})
    Error(msg string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Peer identifies one cluster member.
type Peer struct {
    ID   string `json:"id"`
    Addr string `json:"addr"`
}

// PeerTransport abstracts sending the two protocol RPCs to another node.
// Implementations must honor the context deadline and return an error for
// any peer that does not answer in time; the engine treats every error as a
// missing response, never as a fault.
type PeerTransport interface {
    RequestVote(ctx context.Context, peer Peer, req *RequestVote) (*RequestVoteResponse, error)
    AppendEntries(ctx context.Context, peer Peer, req *AppendEntries) (*AppendEntriesResponse, error)
}

// Config assembles a node.
type Config struct {
    // ID is this node's identity and must appear in Members.
    ID string

    // Members is the full fixed roster, including this node.
    Members []Peer

    Timing Timing

    // Logger is optional; nil means silent.
    Logger Logger

    // Observer receives transition events; nil means none.
    Observer Observer

    // Apply, when set, is invoked once for every committed entry in log
    // order. It runs on a single dedicated goroutine and must not call
    // back into the node.
    Apply func(Entry)

    // Seed fixes the election-timeout randomness; 0 seeds from the clock.
    Seed int64
}

// Validate checks the configuration.
func (c *Config) Validate() error {
    if c.ID == "" {
        return ErrInvalidConfig
    }
    found := false
    for _, m := range c.Members {
        if m.ID == c.ID {
            found = true
        }
    }
    if !found {
        return ErrInvalidConfig
    }
    if c.Timing == (Timing{}) {
        c.Timing = DefaultTiming()
    }
    return c.Timing.Validate()
}

// Node is one Raft participant. It runs three concurrent activities: the
// consensus loop (role-driven periodic behavior) and the message processor
// (drains the inbound queue) share the serialized mutable state and mutate
// it only under mu; the apply loop takes committed batches under mu and is
// the sole caller of the apply hook, which keeps delivery in log order.
type Node struct {
    id          string
    peers       []Peer
    clusterSize int
    timing      Timing

    transport PeerTransport
    logger    Logger
    obs       Observer
    applyFn   func(Entry)

    mu      sync.Mutex
    st      *nodeState
    log     *Log
    pending map[uint64]time.Time // submit time per un-committed local entry
    toApply []Entry
    rng     *rand.Rand

    lastHeartbeat time.Time

    // cumulative counters, guarded by mu
    electionsStarted  uint64
    electionsWon      uint64
    entriesReplicated uint64
    leaderChanges     uint64
    latencyCount      uint64
    latencySum        time.Duration

    in      *inbox
    applyCh chan struct{}
    stopCh  chan struct{}
    wg      sync.WaitGroup
    running atomic.Bool
}

// New builds a node from cfg and the injected transport.
func New(cfg Config, transport PeerTransport) (*Node, error) {
    if err := cfg.Validate(); err != nil {
        return nil, err
    }
    if transport == nil {
        return nil, ErrInvalidConfig
    }
    seed := cfg.Seed
    if seed == 0 {
        seed = time.Now().UnixNano()
    }
    n := &Node{
        id:          cfg.ID,
        clusterSize: len(cfg.Members),
        timing:      cfg.Timing,
        transport:   transport,
        logger:      cfg.Logger,
        obs:         cfg.Observer,
        applyFn:     cfg.Apply,
        st:          newNodeState(),
        log:         NewLog(),
        pending:     make(map[uint64]time.Time),
        rng:         rand.New(rand.NewSource(seed)),
        in:          newInbox(),
        applyCh:     make(chan struct{}, 1),
        stopCh:      make(chan struct{}),
    }
    if n.logger == nil {
        n.logger = nopLogger{}
    }
    if n.obs == nil {
        n.obs = nopObserver{}
    }
    for _, m := range cfg.Members {
        if m.ID != cfg.ID {
            n.peers = append(n.peers, m)
        }
    }
    n.st.electionTimeout = n.timing.NextElectionTimeout(n.rng)
    return n, nil
}

// ID returns the node identity.
func (n *Node) ID() string { return n.id }

// IsLeader reports whether the node currently believes itself leader.
func (n *Node) IsLeader() bool {
    n.mu.Lock()
    defer n.mu.Unlock()
    return n.st.role == Leader
}

// Term returns the current term.
func (n *Node) Term() uint64 {
    n.mu.Lock()
    defer n.mu.Unlock()
    return n.st.currentTerm
}

// Leader returns the last known leader id, empty when unknown.
func (n *Node) Leader() string {
    n.mu.Lock()
    defer n.mu.Unlock()
    return n.st.leaderID
}

// CommitIndex returns the commit watermark.
func (n *Node) CommitIndex() uint64 {
    n.mu.Lock()
    defer n.mu.Unlock()
    return n.st.commitIndex
}

// Start launches the consensus loop and the message processor. The node
// stops when ctx is canceled or Stop is called.
func (n *Node) Start(ctx context.Context) error {
    if !n.running.CompareAndSwap(false, true) {
        return nil
    }
    n.logger.Info("raft node starting", "id", n.id, "cluster", n.clusterSize)
    n.wg.Add(3)
    go n.consensusLoop()
    go n.processLoop()
    go n.applyLoop()
    go func() {
        select {
        case <-ctx.Done():
            n.Stop()
        case <-n.stopCh:
        }
    }()
    return nil
}

// Stop terminates both loops. In-flight peer RPCs are not awaited beyond
// their own deadlines.
func (n *Node) Stop() {
    if !n.running.CompareAndSwap(true, false) {
        return
    }
    close(n.stopCh)
    n.wg.Wait()
    n.logger.Info("raft node stopped", "id", n.id)
}

// SubmitCommand appends a command to the replicated log. Leader-only:
// submitting to a follower or candidate is reported as a plain rejection,
// not an error. The call fires replication and returns immediately; the
// commit index advances as peer acknowledgements arrive (fire-and-confirm
// semantics, observable via Status and the EntryCommitted event).
func (n *Node) SubmitCommand(cmd json.RawMessage) bool {
    if !n.running.Load() {
        return false
    }
    n.mu.Lock()
    if n.st.role != Leader {
        n.mu.Unlock()
        return false
    }
    now := time.Now()
    e := Entry{
        Index:   n.log.LastIndex() + 1,
        Term:    n.st.currentTerm,
        Command: cmd,
        At:      now,
        Origin:  n.id,
        ID:      uuid.NewString(),
    }
    n.log.Append(e)
    n.pending[e.Index] = now
    n.logger.Debug("command appended", "id", n.id, "index", e.Index, "term", e.Term)
    n.advanceCommitLocked()
    n.broadcastAppendLocked()
    n.mu.Unlock()
    return true
}

// HandleRequestVote is the transport entry point for an inbound vote
// request. The message is funneled through the inbox so the processor is
// the single serialization point.
func (n *Node) HandleRequestVote(ctx context.Context, req *RequestVote) (*RequestVoteResponse, error) {
    if !n.running.Load() {
        return nil, ErrStopped
    }
    reply := make(chan message, 1)
    n.in.put(message{kind: kindRequestVote, from: req.CandidateID, vote: req, reply: reply})
    select {
    case r := <-reply:
        return r.voteResp, nil
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-n.stopCh:
        return nil, ErrStopped
    }
}

// HandleAppendEntries is the transport entry point for an inbound
// append-entries request.
func (n *Node) HandleAppendEntries(ctx context.Context, req *AppendEntries) (*AppendEntriesResponse, error) {
    if !n.running.Load() {
        return nil, ErrStopped
    }
    reply := make(chan message, 1)
    n.in.put(message{kind: kindAppendEntries, from: req.LeaderID, app: req, reply: reply})
    select {
    case r := <-reply:
        return r.appResp, nil
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-n.stopCh:
        return nil, ErrStopped
    }
}

// consensusLoop evaluates role-specific behavior on a short fixed tick:
// election timeout as follower/candidate, heartbeat cadence as leader.
func (n *Node) consensusLoop() {
    defer n.wg.Done()
    ticker := time.NewTicker(n.timing.TickInterval)
    defer ticker.Stop()
    for {
        select {
        case <-n.stopCh:
            return
        case <-ticker.C:
            n.tick()
        }
    }
}

func (n *Node) tick() {
    n.mu.Lock()
    switch n.st.role {
    case Follower, Candidate:
        if time.Since(n.st.lastContact) >= n.st.electionTimeout {
            n.startElectionLocked()
        }
    case Leader:
        if time.Since(n.lastHeartbeat) >= n.timing.HeartbeatInterval {
            n.broadcastAppendLocked()
        }
    }
    n.mu.Unlock()
}

// processLoop drains the inbox. Every message is fully handled before the
// next is dequeued; the bounded poll lets the loop observe stopCh promptly.
func (n *Node) processLoop() {
    defer n.wg.Done()
    for {
        select {
        case <-n.stopCh:
            return
        default:
        }
        m, ok := n.in.get(n.timing.TickInterval * 5)
        if !ok {
            continue
        }
        n.process(m)
    }
}

func (n *Node) process(m message) {
    n.mu.Lock()
    switch m.kind {
    case kindRequestVote:
        resp := n.handleRequestVoteLocked(m.vote)
        m.reply <- message{kind: kindRequestVoteResponse, voteResp: resp}
    case kindAppendEntries:
        resp := n.handleAppendEntriesLocked(m.app)
        m.reply <- message{kind: kindAppendEntriesResponse, appResp: resp}
    case kindRequestVoteResponse:
        n.handleVoteResponseLocked(m.from, m.voteResp)
    case kindAppendEntriesResponse:
        n.handleAppendResponseLocked(m.from, m.appResp)
    }
    n.mu.Unlock()
}

// applyLoop is the single consumer of committed batches. Batches are taken
// under mu but delivered here only, so the apply hook and commit events see
// entries strictly in log order no matter which loop advanced the commit.
func (n *Node) applyLoop() {
    defer n.wg.Done()
    for {
        select {
        case <-n.stopCh:
            return
        case <-n.applyCh:
            n.mu.Lock()
            batch := n.takeApplyBatchLocked()
            n.mu.Unlock()
            n.deliver(batch)
        }
    }
}

// startElectionLocked transitions to candidate and solicits votes.
func (n *Node) startElectionLocked() {
    n.st.becomeCandidate(n.id)
    n.electionsStarted++
    n.st.electionTimeout = n.timing.NextElectionTimeout(n.rng)
    n.st.lastContact = time.Now()
    term := n.st.currentTerm
    n.logger.Info("election started", "id", n.id, "term", term)
    n.emit(Event{Type: EventElectionStarted, NodeID: n.id, Role: Candidate, Term: term})
    n.emit(Event{Type: EventRoleChanged, NodeID: n.id, Role: Candidate, Term: term})

    if n.clusterSize == 1 {
        n.becomeLeaderLocked()
        return
    }

    lastIdx, lastTerm := n.log.LastIndexAndTerm()
    req := &RequestVote{
        Term:         term,
        CandidateID:  n.id,
        LastLogIndex: lastIdx,
        LastLogTerm:  lastTerm,
    }
    for _, p := range n.peers {
        go n.sendRequestVote(p, req)
    }
}

func (n *Node) sendRequestVote(p Peer, req *RequestVote) {
    ctx, cancel := context.WithTimeout(context.Background(), n.timing.rpcTimeout())
    defer cancel()
    resp, err := n.transport.RequestVote(ctx, p, req)
    if err != nil {
        // treated as a denied vote; the election decides from the
        // responses that did arrive
        n.logger.Debug("vote request failed", "id", n.id, "peer", p.ID, "err", err)
        return
    }
    n.in.put(message{kind: kindRequestVoteResponse, from: p.ID, voteResp: resp})
}

// becomeLeaderLocked initializes replication state and asserts leadership
// with an immediate heartbeat, before any rival candidate times out.
func (n *Node) becomeLeaderLocked() {
    ids := make([]string, len(n.peers))
    for i, p := range n.peers {
        ids[i] = p.ID
    }
    n.st.becomeLeader(n.id, ids, n.log.LastIndex())
    n.electionsWon++
    n.leaderChanges++
    n.logger.Info("became leader", "id", n.id, "term", n.st.currentTerm)
    n.emit(Event{Type: EventElectionWon, NodeID: n.id, Role: Leader, Term: n.st.currentTerm})
    n.emit(Event{Type: EventRoleChanged, NodeID: n.id, Role: Leader, Term: n.st.currentTerm})
    n.advanceCommitLocked()
    n.broadcastAppendLocked()
}

// becomeFollowerLocked reverts the role, adopting term when newer.
func (n *Node) becomeFollowerLocked(term uint64) {
    prevRole := n.st.role
    prevTerm := n.st.currentTerm
    n.st.becomeFollower(term)
    if prevRole == Leader {
        n.leaderChanges++
        n.cancelPendingLocked()
    }
    if term > prevTerm {
        n.emit(Event{Type: EventTermAdvanced, NodeID: n.id, Role: Follower, Term: term})
    }
    if prevRole != Follower {
        n.logger.Info("stepping down", "id", n.id, "from", prevRole.String(), "term", term)
        n.emit(Event{Type: EventRoleChanged, NodeID: n.id, Role: Follower, Term: term})
    }
}

// broadcastAppendLocked sends append-entries (heartbeat or catch-up
// payload) to every peer based on its nextIndex.
func (n *Node) broadcastAppendLocked() {
    n.lastHeartbeat = time.Now()
    for _, p := range n.peers {
        nextIdx := n.st.nextIndex[p.ID]
        if nextIdx == 0 {
            nextIdx = n.log.LastIndex() + 1
        }
        req := &AppendEntries{
            Term:         n.st.currentTerm,
            LeaderID:     n.id,
            PrevLogIndex: nextIdx - 1,
            PrevLogTerm:  n.log.TermAt(nextIdx - 1),
            Entries:      n.log.EntriesFrom(nextIdx),
            LeaderCommit: n.st.commitIndex,
        }
        go n.sendAppendEntries(p, req)
    }
}

func (n *Node) sendAppendEntries(p Peer, req *AppendEntries) {
    ctx, cancel := context.WithTimeout(context.Background(), n.timing.rpcTimeout())
    defer cancel()
    resp, err := n.transport.AppendEntries(ctx, p, req)
    if err != nil {
        n.logger.Debug("append entries failed", "id", n.id, "peer", p.ID, "err", err)
        return
    }
    n.in.put(message{kind: kindAppendEntriesResponse, from: p.ID, appResp: resp})
}

// handleRequestVoteLocked implements the vote-granting rule: term not older
// than ours, vote record free or already ours, and the candidate's last-log
// (term, index) at least as fresh as ours.
func (n *Node) handleRequestVoteLocked(req *RequestVote) *RequestVoteResponse {
    if req.Term > n.st.currentTerm {
        n.becomeFollowerLocked(req.Term)
    }
    resp := &RequestVoteResponse{Term: n.st.currentTerm}
    if req.Term < n.st.currentTerm {
        return resp
    }
    if n.st.votedFor != "" && n.st.votedFor != req.CandidateID {
        return resp
    }
    lastIdx, lastTerm := n.log.LastIndexAndTerm()
    upToDate := req.LastLogTerm > lastTerm ||
        (req.LastLogTerm == lastTerm && req.LastLogIndex >= lastIdx)
    if !upToDate {
        return resp
    }
    n.st.votedFor = req.CandidateID
    resp.VoteGranted = true
    // defer to the legitimate candidate
    n.st.lastContact = time.Now()
    n.logger.Debug("vote granted", "id", n.id, "candidate", req.CandidateID, "term", req.Term)
    return resp
}

// handleAppendEntriesLocked accepts entries from a current leader,
// truncating any conflicting uncommitted suffix, and advances the commit
// watermark to min(leaderCommit, lastLogIndex). Replays are idempotent:
// entries already present with a matching term are skipped.
func (n *Node) handleAppendEntriesLocked(req *AppendEntries) *AppendEntriesResponse {
    if req.Term > n.st.currentTerm {
        n.becomeFollowerLocked(req.Term)
    }
    resp := &AppendEntriesResponse{Term: n.st.currentTerm}
    if req.Term < n.st.currentTerm {
        return resp
    }
    if n.st.role != Follower {
        n.becomeFollowerLocked(req.Term)
    }
    n.st.leaderID = req.LeaderID
    n.st.lastContact = time.Now()

    if req.PrevLogIndex > 0 {
        if req.PrevLogIndex > n.log.LastIndex() {
            resp.ConflictIndex = n.log.LastIndex() + 1
            return resp
        }
        if have := n.log.TermAt(req.PrevLogIndex); have != req.PrevLogTerm {
            // back off to the first index of the conflicting term
            ci := req.PrevLogIndex
            for ci > 1 && n.log.TermAt(ci-1) == have {
                ci--
            }
            resp.ConflictIndex = ci
            return resp
        }
    }

    for _, e := range req.Entries {
        switch {
        case e.Index <= n.log.LastIndex():
            if n.log.TermAt(e.Index) != e.Term {
                n.log.TruncateFrom(e.Index)
                n.log.Append(e)
            }
        default:
            n.log.Append(e)
        }
    }

    if req.LeaderCommit > n.st.commitIndex {
        nc := req.LeaderCommit
        if last := n.log.LastIndex(); last < nc {
            nc = last
        }
        if nc > n.st.commitIndex {
            n.st.setCommitIndex(nc)
            n.collectCommittedLocked()
        }
    }

    resp.Success = true
    resp.MatchIndex = req.PrevLogIndex + uint64(len(req.Entries))
    return resp
}

func (n *Node) handleVoteResponseLocked(from string, resp *RequestVoteResponse) {
    if resp.Term > n.st.currentTerm {
        n.becomeFollowerLocked(resp.Term)
        return
    }
    if n.st.role != Candidate || resp.Term < n.st.currentTerm || !resp.VoteGranted {
        return
    }
    n.st.votesGranted++
    n.logger.Debug("vote received", "id", n.id, "from", from, "votes", n.st.votesGranted)
    if n.st.votesGranted >= quorum(n.clusterSize) {
        n.becomeLeaderLocked()
    }
}

func (n *Node) handleAppendResponseLocked(from string, resp *AppendEntriesResponse) {
    if resp.Term > n.st.currentTerm {
        n.becomeFollowerLocked(resp.Term)
        return
    }
    if n.st.role != Leader || resp.Term < n.st.currentTerm {
        return
    }
    if !resp.Success {
        if resp.ConflictIndex > 0 {
            n.st.nextIndex[from] = resp.ConflictIndex
        } else if n.st.nextIndex[from] > 1 {
            n.st.nextIndex[from]--
        }
        return
    }
    if resp.MatchIndex > n.st.matchIndex[from] {
        n.entriesReplicated += resp.MatchIndex - n.st.matchIndex[from]
        n.st.matchIndex[from] = resp.MatchIndex
    }
    n.st.nextIndex[from] = resp.MatchIndex + 1
    n.advanceCommitLocked()
}

// advanceCommitLocked finds the highest index replicated on a majority,
// counting only current-term entries, and moves the commit watermark.
func (n *Node) advanceCommitLocked() {
    if n.st.role != Leader {
        return
    }
    for idx := n.log.LastIndex(); idx > n.st.commitIndex; idx-- {
        if n.log.TermAt(idx) != n.st.currentTerm {
            continue
        }
        count := 1 // self
        for _, m := range n.st.matchIndex {
            if m >= idx {
                count++
            }
        }
        if count >= quorum(n.clusterSize) {
            n.st.setCommitIndex(idx)
            n.collectCommittedLocked()
            break
        }
    }
}

// collectCommittedLocked advances lastApplied up to commitIndex, queueing
// the entries for delivery outside the lock.
func (n *Node) collectCommittedLocked() {
    for n.st.lastApplied < n.st.commitIndex {
        n.st.lastApplied++
        e, ok := n.log.Get(n.st.lastApplied)
        if !ok {
            break
        }
        if at, tracked := n.pending[e.Index]; tracked {
            n.latencyCount++
            n.latencySum += time.Since(at)
            delete(n.pending, e.Index)
        }
        n.toApply = append(n.toApply, e)
    }
    if len(n.toApply) > 0 {
        select {
        case n.applyCh <- struct{}{}:
        default:
        }
    }
}

func (n *Node) cancelPendingLocked() {
    for idx := range n.pending {
        delete(n.pending, idx)
    }
}

func (n *Node) takeApplyBatchLocked() []Entry {
    if len(n.toApply) == 0 {
        return nil
    }
    batch := n.toApply
    n.toApply = nil
    return batch
}

// deliver invokes the apply hook and commit events for a committed batch,
// outside the node mutex. Called only from applyLoop.
func (n *Node) deliver(batch []Entry) {
    for _, e := range batch {
        var lat time.Duration
        if e.Origin == n.id && !e.At.IsZero() {
            lat = time.Since(e.At)
        }
        n.emit(Event{Type: EventEntryCommitted, NodeID: n.id, Term: e.Term, Index: e.Index, Latency: lat})
        if n.applyFn != nil {
            n.applyFn(e)
        }
    }
}

func (n *Node) emit(ev Event) {
    ev.At = time.Now()
    n.obs.OnEvent(ev)
}
