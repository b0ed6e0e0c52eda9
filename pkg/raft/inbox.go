package raft

import (
    "sync"
    "time"
)

// inbox is the unbounded inbound queue feeding the message processor. Put
// never blocks the producing transport goroutine; Get waits with a bounded
// timeout so the single consumer can observe the stop signal between polls.
type inbox struct {
    mu     sync.Mutex
    queue  []message
    signal chan struct{}
}

func newInbox() *inbox {
    return &inbox{signal: make(chan struct{}, 1)}
}

func (in *inbox) put(m message) {
    in.mu.Lock()
    in.queue = append(in.queue, m)
    in.mu.Unlock()
    select {
    case in.signal <- struct{}{}:
    default:
    }
}

// get pops the oldest message, waiting up to wait for one to arrive.
func (in *inbox) get(wait time.Duration) (message, bool) {
    deadline := time.Now().Add(wait)
    for {
        in.mu.Lock()
        if len(in.queue) > 0 {
            m := in.queue[0]
            in.queue = in.queue[1:]
            in.mu.Unlock()
            return m, true
        }
        in.mu.Unlock()

        remain := time.Until(deadline)
        if remain <= 0 {
            return message{}, false
        }
        timer := time.NewTimer(remain)
        select {
        case <-in.signal:
            timer.Stop()
        case <-timer.C:
            return message{}, false
        }
    }
}

func (in *inbox) len() int {
    in.mu.Lock()
    defer in.mu.Unlock()
    return len(in.queue)
}
