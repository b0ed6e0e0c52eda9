package cluster

import "errors"

var (
    ErrNotLeader   = errors.New("cluster: not leader")
    ErrNoLeader    = errors.New("cluster: no known leader")
    ErrUnreachable = errors.New("cluster: unreachable")
    ErrStopped     = errors.New("cluster: stopped")
)
