package cluster

import "github.com/amirimatin/go-consensus/pkg/raft"

// StateMachine is the application-level hook that receives committed log
// entries, in order, exactly once per entry on a given node. Implementations
// must not call back into the cluster; payloads are opaque to this package.
type StateMachine interface {
    Apply(e raft.Entry)
}

// StateMachineFunc adapts a function to the StateMachine interface.
type StateMachineFunc func(e raft.Entry)

func (f StateMachineFunc) Apply(e raft.Entry) { f(e) }
