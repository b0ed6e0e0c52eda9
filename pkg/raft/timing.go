package raft

import (
    "fmt"
    "math/rand"
    "time"
)

// Timing groups the protocol timers. Election timeouts are drawn uniformly
// from [ElectionTimeoutMin, ElectionTimeoutMax) so that concurrent candidates
// rarely collide; the heartbeat interval must stay well below the minimum
// election timeout or followers will keep starting elections under a healthy
// leader.
type Timing struct {
    ElectionTimeoutMin time.Duration
    ElectionTimeoutMax time.Duration
    HeartbeatInterval  time.Duration

    // TickInterval is the cadence of the consensus loop.
    TickInterval time.Duration

    // RPCTimeout bounds a single peer round-trip. Zero means half the
    // minimum election timeout.
    RPCTimeout time.Duration
}

// DefaultTiming returns the standard timer set.
func DefaultTiming() Timing {
    return Timing{
        ElectionTimeoutMin: 150 * time.Millisecond,
        ElectionTimeoutMax: 300 * time.Millisecond,
        HeartbeatInterval:  50 * time.Millisecond,
        TickInterval:       10 * time.Millisecond,
    }
}

// Validate checks the timer relationships.
func (t Timing) Validate() error {
    if t.ElectionTimeoutMin <= 0 || t.ElectionTimeoutMax <= t.ElectionTimeoutMin {
        return fmt.Errorf("%w: election timeout range [%v, %v)", ErrInvalidConfig, t.ElectionTimeoutMin, t.ElectionTimeoutMax)
    }
    if t.HeartbeatInterval <= 0 || t.HeartbeatInterval*2 > t.ElectionTimeoutMin {
        return fmt.Errorf("%w: heartbeat interval %v too close to election timeout %v", ErrInvalidConfig, t.HeartbeatInterval, t.ElectionTimeoutMin)
    }
    if t.TickInterval <= 0 || t.TickInterval > t.HeartbeatInterval {
        return fmt.Errorf("%w: tick interval %v", ErrInvalidConfig, t.TickInterval)
    }
    return nil
}

// NextElectionTimeout draws a randomized election timeout from rng.
func (t Timing) NextElectionTimeout(rng *rand.Rand) time.Duration {
    span := int64(t.ElectionTimeoutMax - t.ElectionTimeoutMin)
    return t.ElectionTimeoutMin + time.Duration(rng.Int63n(span))
}

// rpcTimeout returns the effective per-RPC deadline.
func (t Timing) rpcTimeout() time.Duration {
    if t.RPCTimeout > 0 {
        return t.RPCTimeout
    }
    return t.ElectionTimeoutMin / 2
}
