package raft

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "testing"
    "time"
)

// testNet wires nodes to each other in-process and lets tests sever
// individual members to simulate crashes and partitions.
type testNet struct {
    mu    sync.Mutex
    nodes map[string]*Node
    cut   map[string]bool
}

func newTestNet() *testNet {
    return &testNet{nodes: make(map[string]*Node), cut: make(map[string]bool)}
}

func (tn *testNet) register(n *Node) {
    tn.mu.Lock()
    defer tn.mu.Unlock()
    tn.nodes[n.ID()] = n
}

func (tn *testNet) sever(id string) {
    tn.mu.Lock()
    defer tn.mu.Unlock()
    tn.cut[id] = true
}

func (tn *testNet) heal(id string) {
    tn.mu.Lock()
    defer tn.mu.Unlock()
    delete(tn.cut, id)
}

func (tn *testNet) route(from, to string) (*Node, error) {
    tn.mu.Lock()
    defer tn.mu.Unlock()
    if tn.cut[from] || tn.cut[to] {
        return nil, ErrUnreachable
    }
    n, ok := tn.nodes[to]
    if !ok {
        return nil, ErrUnknownPeer
    }
    return n, nil
}

func (tn *testNet) RequestVote(ctx context.Context, peer Peer, req *RequestVote) (*RequestVoteResponse, error) {
    n, err := tn.route(req.CandidateID, peer.ID)
    if err != nil {
        return nil, err
    }
    return n.HandleRequestVote(ctx, req)
}

func (tn *testNet) AppendEntries(ctx context.Context, peer Peer, req *AppendEntries) (*AppendEntriesResponse, error) {
    n, err := tn.route(req.LeaderID, peer.ID)
    if err != nil {
        return nil, err
    }
    return n.HandleAppendEntries(ctx, req)
}

var _ PeerTransport = (*testNet)(nil)

func fastTiming() Timing {
    return Timing{
        ElectionTimeoutMin: 60 * time.Millisecond,
        ElectionTimeoutMax: 120 * time.Millisecond,
        HeartbeatInterval:  20 * time.Millisecond,
        TickInterval:       5 * time.Millisecond,
        RPCTimeout:         30 * time.Millisecond,
    }
}

func startCluster(t *testing.T, size int) (map[string]*Node, *testNet) {
    t.Helper()
    tn := newTestNet()
    members := make([]Peer, size)
    for i := range members {
        members[i] = Peer{ID: fmt.Sprintf("n%d", i+1)}
    }
    nodes := make(map[string]*Node, size)
    for i, m := range members {
        n, err := New(Config{
            ID:      m.ID,
            Members: members,
            Timing:  fastTiming(),
            Seed:    int64(i + 1),
        }, tn)
        if err != nil {
            t.Fatalf("new %s: %v", m.ID, err)
        }
        tn.register(n)
        nodes[m.ID] = n
    }
    for _, n := range nodes {
        if err := n.Start(context.Background()); err != nil {
            t.Fatalf("start %s: %v", n.ID(), err)
        }
    }
    t.Cleanup(func() {
        for _, n := range nodes {
            n.Stop()
        }
    })
    return nodes, tn
}

// waitLeader waits until exactly one reachable node claims leadership.
func waitLeader(t *testing.T, nodes map[string]*Node, tn *testNet, timeout time.Duration) *Node {
    t.Helper()
    deadline := time.Now().Add(timeout)
    for time.Now().Before(deadline) {
        var leader *Node
        count := 0
        for _, n := range nodes {
            tn.mu.Lock()
            cut := tn.cut[n.ID()]
            tn.mu.Unlock()
            if cut {
                continue
            }
            if n.IsLeader() {
                leader = n
                count++
            }
        }
        if count == 1 {
            return leader
        }
        time.Sleep(10 * time.Millisecond)
    }
    t.Fatalf("no single leader elected within %v", timeout)
    return nil
}

func waitCommit(t *testing.T, n *Node, index uint64, timeout time.Duration) {
    t.Helper()
    deadline := time.Now().Add(timeout)
    for time.Now().Before(deadline) {
        if n.CommitIndex() >= index {
            return
        }
        time.Sleep(5 * time.Millisecond)
    }
    t.Fatalf("%s: commit index %d not reached within %v (at %d)", n.ID(), index, timeout, n.CommitIndex())
}

func TestNode_SingleNodeBecomesLeaderAndCommits(t *testing.T) {
    nodes, tn := startCluster(t, 1)
    n := waitLeader(t, nodes, tn, 2*time.Second)

    if !n.SubmitCommand(json.RawMessage(`{"op":"set"}`)) {
        t.Fatalf("leader rejected command")
    }
    waitCommit(t, n, 1, time.Second)
    st := n.Status()
    if !st.IsLeader || st.CommitIndex != 1 || st.LogLength != 1 {
        t.Fatalf("status = %+v", st)
    }
}

func TestNode_ThreeNodeElection(t *testing.T) {
    nodes, tn := startCluster(t, 3)
    leader := waitLeader(t, nodes, tn, 3*time.Second)

    // followers converge on the same leader identity
    deadline := time.Now().Add(2 * time.Second)
    for time.Now().Before(deadline) {
        agreed := true
        for _, n := range nodes {
            if n.Leader() != leader.ID() {
                agreed = false
            }
        }
        if agreed {
            break
        }
        time.Sleep(10 * time.Millisecond)
    }
    for _, n := range nodes {
        if got := n.Leader(); got != leader.ID() {
            t.Fatalf("%s sees leader %q, want %q", n.ID(), got, leader.ID())
        }
    }
    if leader.Term() == 0 {
        t.Fatalf("leader term is zero")
    }
}

func TestNode_ReplicatesAndCommitsAcrossCluster(t *testing.T) {
    nodes, tn := startCluster(t, 3)
    leader := waitLeader(t, nodes, tn, 3*time.Second)

    for i := 0; i < 3; i++ {
        cmd := json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i))
        if !leader.SubmitCommand(cmd) {
            t.Fatalf("submit %d rejected", i)
        }
    }
    for _, n := range nodes {
        waitCommit(t, n, 3, 3*time.Second)
    }
    // all logs agree entry by entry
    for _, n := range nodes {
        n.mu.Lock()
        for idx := uint64(1); idx <= 3; idx++ {
            e, ok := n.log.Get(idx)
            le, _ := leader.log.Get(idx)
            if !ok || e.Term != le.Term || string(e.Command) != string(le.Command) {
                n.mu.Unlock()
                t.Fatalf("%s log[%d] = %+v, leader has %+v", n.ID(), idx, e, le)
            }
        }
        n.mu.Unlock()
    }
}

func TestNode_SubmitOnFollowerRejected(t *testing.T) {
    nodes, tn := startCluster(t, 3)
    leader := waitLeader(t, nodes, tn, 3*time.Second)
    for _, n := range nodes {
        if n.ID() == leader.ID() {
            continue
        }
        if n.SubmitCommand(json.RawMessage(`1`)) {
            t.Fatalf("follower %s accepted a command", n.ID())
        }
    }
}

func TestNode_ReelectionAfterLeaderLoss(t *testing.T) {
    nodes, tn := startCluster(t, 3)
    old := waitLeader(t, nodes, tn, 3*time.Second)
    oldTerm := old.Term()

    tn.sever(old.ID())
    next := waitLeader(t, nodes, tn, 3*time.Second)
    if next.ID() == old.ID() {
        t.Fatalf("severed node still counted as leader")
    }
    if next.Term() <= oldTerm {
        t.Fatalf("new leader term %d not above %d", next.Term(), oldTerm)
    }

    // the stale leader rejoins and yields to the higher term
    tn.heal(old.ID())
    deadline := time.Now().Add(2 * time.Second)
    for time.Now().Before(deadline) {
        if !old.IsLeader() && old.Leader() == next.ID() {
            break
        }
        time.Sleep(10 * time.Millisecond)
    }
    if old.IsLeader() {
        t.Fatalf("stale leader did not step down")
    }
    if old.Term() < next.Term() {
        t.Fatalf("rejoined node term %d below cluster term %d", old.Term(), next.Term())
    }
}

func TestNode_CommitsSurviveLeaderChange(t *testing.T) {
    nodes, tn := startCluster(t, 3)
    old := waitLeader(t, nodes, tn, 3*time.Second)
    if !old.SubmitCommand(json.RawMessage(`"before"`)) {
        t.Fatalf("submit rejected")
    }
    for _, n := range nodes {
        waitCommit(t, n, 1, 3*time.Second)
    }

    tn.sever(old.ID())
    next := waitLeader(t, nodes, tn, 3*time.Second)
    if next.CommitIndex() < 1 {
        t.Fatalf("new leader lost committed entry")
    }
    if !next.SubmitCommand(json.RawMessage(`"after"`)) {
        t.Fatalf("submit on new leader rejected")
    }
    for _, n := range nodes {
        if n.ID() == old.ID() {
            continue
        }
        waitCommit(t, n, 2, 3*time.Second)
    }
}

func TestNode_ApplyCallbackSeesCommittedOrder(t *testing.T) {
    var mu sync.Mutex
    var applied []uint64
    tn := newTestNet()
    members := []Peer{{ID: "solo"}}
    n, err := New(Config{
        ID:      "solo",
        Members: members,
        Timing:  fastTiming(),
        Apply: func(e Entry) {
            mu.Lock()
            applied = append(applied, e.Index)
            mu.Unlock()
        },
    }, tn)
    if err != nil {
        t.Fatalf("new: %v", err)
    }
    tn.register(n)
    if err := n.Start(context.Background()); err != nil {
        t.Fatalf("start: %v", err)
    }
    defer n.Stop()

    waitLeader(t, map[string]*Node{"solo": n}, tn, 2*time.Second)
    for i := 0; i < 3; i++ {
        if !n.SubmitCommand(json.RawMessage(`null`)) {
            t.Fatalf("submit %d rejected", i)
        }
    }
    waitCommit(t, n, 3, time.Second)

    mu.Lock()
    defer mu.Unlock()
    if len(applied) != 3 {
        t.Fatalf("applied %v, want 3 entries", applied)
    }
    for i, idx := range applied {
        if idx != uint64(i+1) {
            t.Fatalf("applied out of order: %v", applied)
        }
    }
}

func TestNode_ApplyOrderUnderConcurrentSubmit(t *testing.T) {
    var mu sync.Mutex
    var applied []uint64
    tn := newTestNet()
    n, err := New(Config{
        ID:      "solo",
        Members: []Peer{{ID: "solo"}},
        Timing:  fastTiming(),
        Apply: func(e Entry) {
            mu.Lock()
            applied = append(applied, e.Index)
            mu.Unlock()
        },
    }, tn)
    if err != nil {
        t.Fatalf("new: %v", err)
    }
    tn.register(n)
    if err := n.Start(context.Background()); err != nil {
        t.Fatalf("start: %v", err)
    }
    defer n.Stop()
    waitLeader(t, map[string]*Node{"solo": n}, tn, 2*time.Second)

    const writers, perWriter = 8, 250
    var wg sync.WaitGroup
    for w := 0; w < writers; w++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for i := 0; i < perWriter; i++ {
                if !n.SubmitCommand(json.RawMessage(`null`)) {
                    t.Error("submit rejected")
                    return
                }
            }
        }()
    }
    wg.Wait()
    waitCommit(t, n, writers*perWriter, 5*time.Second)

    // the apply hook trails the commit watermark; wait for it to drain
    deadline := time.Now().Add(5 * time.Second)
    for time.Now().Before(deadline) {
        mu.Lock()
        done := len(applied) == writers*perWriter
        mu.Unlock()
        if done {
            break
        }
        time.Sleep(5 * time.Millisecond)
    }

    mu.Lock()
    defer mu.Unlock()
    if len(applied) != writers*perWriter {
        t.Fatalf("applied %d entries, want %d", len(applied), writers*perWriter)
    }
    for i, idx := range applied {
        if idx != uint64(i+1) {
            t.Fatalf("apply order broken at position %d: got index %d", i, idx)
        }
    }
}

func TestNode_ObserverSeesElection(t *testing.T) {
    obs := NewChanObserver(64)
    tn := newTestNet()
    n, err := New(Config{
        ID:       "solo",
        Members:  []Peer{{ID: "solo"}},
        Timing:   fastTiming(),
        Observer: obs,
    }, tn)
    if err != nil {
        t.Fatalf("new: %v", err)
    }
    tn.register(n)
    if err := n.Start(context.Background()); err != nil {
        t.Fatalf("start: %v", err)
    }
    defer n.Stop()

    var seen []EventType
    deadline := time.After(2 * time.Second)
    for {
        select {
        case ev := <-obs.C:
            seen = append(seen, ev.Type)
            if ev.Type == EventElectionWon {
                return
            }
        case <-deadline:
            t.Fatalf("no election_won event, saw %v", seen)
        }
    }
}

func TestNode_ConfigValidation(t *testing.T) {
    tn := newTestNet()
    if _, err := New(Config{ID: "", Members: []Peer{{ID: "a"}}}, tn); err == nil {
        t.Fatalf("empty id accepted")
    }
    if _, err := New(Config{ID: "x", Members: []Peer{{ID: "a"}}}, tn); err == nil {
        t.Fatalf("id outside roster accepted")
    }
    if _, err := New(Config{ID: "a", Members: []Peer{{ID: "a"}}}, nil); err == nil {
        t.Fatalf("nil transport accepted")
    }
}

// The handler tests below exercise the protocol rules directly on an
// unstarted node, with deterministic state.

func unstartedNode(t *testing.T, id string, members ...string) *Node {
    t.Helper()
    peers := make([]Peer, len(members))
    for i, m := range members {
        peers[i] = Peer{ID: m}
    }
    n, err := New(Config{ID: id, Members: peers, Timing: DefaultTiming(), Seed: 1}, newTestNet())
    if err != nil {
        t.Fatalf("new: %v", err)
    }
    return n
}

func TestNode_VoteGrantedOncePerTerm(t *testing.T) {
    n := unstartedNode(t, "n1", "n1", "n2", "n3")
    n.mu.Lock()
    defer n.mu.Unlock()

    r1 := n.handleRequestVoteLocked(&RequestVote{Term: 1, CandidateID: "n2"})
    if !r1.VoteGranted {
        t.Fatalf("first vote denied: %+v", r1)
    }
    r2 := n.handleRequestVoteLocked(&RequestVote{Term: 1, CandidateID: "n3"})
    if r2.VoteGranted {
        t.Fatalf("second candidate granted in same term")
    }
    // same candidate retrying is granted again
    r3 := n.handleRequestVoteLocked(&RequestVote{Term: 1, CandidateID: "n2"})
    if !r3.VoteGranted {
        t.Fatalf("retry by granted candidate denied")
    }
    // a new term frees the vote record
    r4 := n.handleRequestVoteLocked(&RequestVote{Term: 2, CandidateID: "n3"})
    if !r4.VoteGranted {
        t.Fatalf("vote in new term denied")
    }
}

func TestNode_VoteDeniedForStaleTerm(t *testing.T) {
    n := unstartedNode(t, "n1", "n1", "n2")
    n.mu.Lock()
    defer n.mu.Unlock()
    n.st.advanceTerm(5)

    r := n.handleRequestVoteLocked(&RequestVote{Term: 3, CandidateID: "n2"})
    if r.VoteGranted {
        t.Fatalf("stale-term vote granted")
    }
    if r.Term != 5 {
        t.Fatalf("response term = %d, want 5", r.Term)
    }
}

func TestNode_VoteDeniedForOutdatedLog(t *testing.T) {
    n := unstartedNode(t, "n1", "n1", "n2")
    n.mu.Lock()
    defer n.mu.Unlock()
    n.log.Append(Entry{Index: 1, Term: 1})
    n.log.Append(Entry{Index: 2, Term: 2})
    n.st.advanceTerm(2)

    // candidate's log ends at an older term
    r := n.handleRequestVoteLocked(&RequestVote{Term: 3, CandidateID: "n2", LastLogIndex: 5, LastLogTerm: 1})
    if r.VoteGranted {
        t.Fatalf("vote granted to candidate with stale last term")
    }
    // same last term but shorter log
    r = n.handleRequestVoteLocked(&RequestVote{Term: 4, CandidateID: "n2", LastLogIndex: 1, LastLogTerm: 2})
    if r.VoteGranted {
        t.Fatalf("vote granted to candidate with shorter log")
    }
    // equal (term, index) is fresh enough
    r = n.handleRequestVoteLocked(&RequestVote{Term: 5, CandidateID: "n2", LastLogIndex: 2, LastLogTerm: 2})
    if !r.VoteGranted {
        t.Fatalf("vote denied to up-to-date candidate")
    }
}

func TestNode_AppendRejectsStaleTerm(t *testing.T) {
    n := unstartedNode(t, "n1", "n1", "n2")
    n.mu.Lock()
    defer n.mu.Unlock()
    n.st.advanceTerm(5)

    r := n.handleAppendEntriesLocked(&AppendEntries{Term: 4, LeaderID: "n2"})
    if r.Success {
        t.Fatalf("stale-term append accepted")
    }
    if r.Term != 5 {
        t.Fatalf("response term = %d, want 5", r.Term)
    }
}

func TestNode_CandidateYieldsToSameTermLeader(t *testing.T) {
    n := unstartedNode(t, "n1", "n1", "n2", "n3")
    n.mu.Lock()
    defer n.mu.Unlock()
    n.st.becomeCandidate("n1")
    term := n.st.currentTerm

    // the rival won this term's election; its heartbeat settles the race
    r := n.handleAppendEntriesLocked(&AppendEntries{Term: term, LeaderID: "n2"})
    if !r.Success {
        t.Fatalf("heartbeat from elected leader rejected: %+v", r)
    }
    if n.st.role != Follower {
        t.Fatalf("candidate kept role %v after leader heartbeat", n.st.role)
    }
    if n.st.currentTerm != term {
        t.Fatalf("term = %d, want %d", n.st.currentTerm, term)
    }
    if n.st.leaderID != "n2" {
        t.Fatalf("leader = %q, want n2", n.st.leaderID)
    }
    if n.st.votedFor != "n1" {
        t.Fatalf("vote record rewritten within the term: %q", n.st.votedFor)
    }
}

func TestNode_AppendConsistencyCheck(t *testing.T) {
    n := unstartedNode(t, "n1", "n1", "n2")
    n.mu.Lock()
    defer n.mu.Unlock()
    n.log.Append(Entry{Index: 1, Term: 1})

    // gap: leader assumes more history than we have
    r := n.handleAppendEntriesLocked(&AppendEntries{Term: 1, LeaderID: "n2", PrevLogIndex: 3, PrevLogTerm: 1})
    if r.Success {
        t.Fatalf("append past end accepted")
    }
    if r.ConflictIndex != 2 {
        t.Fatalf("conflict index = %d, want 2", r.ConflictIndex)
    }

    // term mismatch at prev index
    r = n.handleAppendEntriesLocked(&AppendEntries{Term: 2, LeaderID: "n2", PrevLogIndex: 1, PrevLogTerm: 2})
    if r.Success {
        t.Fatalf("mismatched prev term accepted")
    }
    if r.ConflictIndex != 1 {
        t.Fatalf("conflict index = %d, want 1", r.ConflictIndex)
    }
}

func TestNode_AppendTruncatesConflictingSuffix(t *testing.T) {
    n := unstartedNode(t, "n1", "n1", "n2")
    n.mu.Lock()
    defer n.mu.Unlock()
    n.log.Append(Entry{Index: 1, Term: 1})
    n.log.Append(Entry{Index: 2, Term: 1})
    n.log.Append(Entry{Index: 3, Term: 1})

    r := n.handleAppendEntriesLocked(&AppendEntries{
        Term:         2,
        LeaderID:     "n2",
        PrevLogIndex: 1,
        PrevLogTerm:  1,
        Entries: []Entry{
            {Index: 2, Term: 2, Command: json.RawMessage(`"new"`)},
        },
    })
    if !r.Success {
        t.Fatalf("append rejected: %+v", r)
    }
    if got := n.log.LastIndex(); got != 2 {
        t.Fatalf("last index = %d, want 2 after truncation", got)
    }
    if got := n.log.TermAt(2); got != 2 {
        t.Fatalf("term at 2 = %d, want 2", got)
    }
    if r.MatchIndex != 2 {
        t.Fatalf("match index = %d, want 2", r.MatchIndex)
    }
}

func TestNode_AppendIdempotent(t *testing.T) {
    n := unstartedNode(t, "n1", "n1", "n2")
    n.mu.Lock()
    defer n.mu.Unlock()

    req := &AppendEntries{
        Term:     1,
        LeaderID: "n2",
        Entries: []Entry{
            {Index: 1, Term: 1, Command: json.RawMessage(`"a"`)},
            {Index: 2, Term: 1, Command: json.RawMessage(`"b"`)},
        },
    }
    r1 := n.handleAppendEntriesLocked(req)
    r2 := n.handleAppendEntriesLocked(req)
    if !r1.Success || !r2.Success {
        t.Fatalf("replay rejected: %+v / %+v", r1, r2)
    }
    if n.log.Len() != 2 {
        t.Fatalf("log length = %d after replay, want 2", n.log.Len())
    }
    if r1.MatchIndex != r2.MatchIndex {
        t.Fatalf("match index changed across replay: %d vs %d", r1.MatchIndex, r2.MatchIndex)
    }
}

func TestNode_AppendClampsCommitToLocalLog(t *testing.T) {
    n := unstartedNode(t, "n1", "n1", "n2")
    n.mu.Lock()
    defer n.mu.Unlock()

    r := n.handleAppendEntriesLocked(&AppendEntries{
        Term:         1,
        LeaderID:     "n2",
        LeaderCommit: 10,
        Entries:      []Entry{{Index: 1, Term: 1}},
    })
    if !r.Success {
        t.Fatalf("append rejected: %+v", r)
    }
    if got := n.st.commitIndex; got != 1 {
        t.Fatalf("commit index = %d, want 1 (clamped to local log)", got)
    }
}

func TestNode_LeaderStepsDownOnHigherTermResponse(t *testing.T) {
    n := unstartedNode(t, "n1", "n1", "n2", "n3")
    n.mu.Lock()
    defer n.mu.Unlock()
    n.st.becomeCandidate("n1")
    n.becomeLeaderLocked()
    if n.st.role != Leader {
        t.Fatalf("setup: not leader")
    }

    n.handleAppendResponseLocked("n2", &AppendEntriesResponse{Term: 9})
    if n.st.role != Follower {
        t.Fatalf("leader kept role after seeing term 9")
    }
    if n.st.currentTerm != 9 {
        t.Fatalf("term = %d, want 9", n.st.currentTerm)
    }
}

func TestNode_AppendResponseFromOlderTermIgnored(t *testing.T) {
    n := unstartedNode(t, "n1", "n1", "n2", "n3")
    n.mu.Lock()
    defer n.mu.Unlock()
    n.st.advanceTerm(4)
    n.st.becomeCandidate("n1") // term 5
    n.becomeLeaderLocked()
    n.log.Append(Entry{Index: 1, Term: n.st.currentTerm})

    // a delayed success reply from an earlier leadership stint carries a
    // stale term and must not touch replication progress
    n.handleAppendResponseLocked("n2", &AppendEntriesResponse{Term: 3, Success: true, MatchIndex: 1})
    if got := n.st.matchIndex["n2"]; got != 0 {
        t.Fatalf("stale reply advanced matchIndex to %d", got)
    }
    if got := n.st.nextIndex["n2"]; got != 1 {
        t.Fatalf("stale reply moved nextIndex to %d", got)
    }
    if n.st.commitIndex != 0 {
        t.Fatalf("stale reply committed index %d", n.st.commitIndex)
    }
    if n.entriesReplicated != 0 {
        t.Fatalf("stale reply counted %d replicated entries", n.entriesReplicated)
    }
}

func TestNode_CommitRequiresCurrentTermMajority(t *testing.T) {
    n := unstartedNode(t, "n1", "n1", "n2", "n3")
    n.mu.Lock()
    defer n.mu.Unlock()

    // an entry from an older term sits replicated but uncommitted
    n.log.Append(Entry{Index: 1, Term: 1})
    n.st.advanceTerm(2)
    n.st.becomeCandidate("n1") // term 3
    n.becomeLeaderLocked()

    n.st.matchIndex["n2"] = 1
    n.advanceCommitLocked()
    if n.st.commitIndex != 0 {
        t.Fatalf("prior-term entry committed by count alone")
    }

    // replicating a current-term entry on a majority commits both
    n.log.Append(Entry{Index: 2, Term: n.st.currentTerm})
    n.st.matchIndex["n2"] = 2
    n.advanceCommitLocked()
    if n.st.commitIndex != 2 {
        t.Fatalf("commit index = %d, want 2", n.st.commitIndex)
    }
}

func TestNode_ConflictBackoffTargetsTermStart(t *testing.T) {
    n := unstartedNode(t, "n1", "n1", "n2")
    n.mu.Lock()
    defer n.mu.Unlock()
    n.log.Append(Entry{Index: 1, Term: 1})
    n.log.Append(Entry{Index: 2, Term: 2})
    n.log.Append(Entry{Index: 3, Term: 2})
    n.log.Append(Entry{Index: 4, Term: 2})

    r := n.handleAppendEntriesLocked(&AppendEntries{Term: 3, LeaderID: "n2", PrevLogIndex: 4, PrevLogTerm: 3})
    if r.Success {
        t.Fatalf("mismatched suffix accepted")
    }
    // back off to the first index of the conflicting local term
    if r.ConflictIndex != 2 {
        t.Fatalf("conflict index = %d, want 2", r.ConflictIndex)
    }
}
