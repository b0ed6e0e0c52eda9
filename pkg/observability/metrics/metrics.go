package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    IsLeader = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "go_consensus",
        Name:      "is_leader",
        Help:      "1 if this node is the leader, else 0",
    })

    CurrentTerm = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "go_consensus",
        Name:      "current_term",
        Help:      "Current term as seen by this node",
    })

    CommitIndex = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "go_consensus",
        Name:      "commit_index",
        Help:      "Highest log index known to be committed",
    })

    LogLength = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "go_consensus",
        Name:      "log_length",
        Help:      "Number of entries in the local log",
    })

    LeaderChanges = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "go_consensus",
        Name:      "leader_changes_total",
        Help:      "Total number of observed leader change events",
    })

    ElectionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "go_consensus",
        Name:      "elections_started_total",
        Help:      "Total elections started by this node",
    })

    ElectionsWon = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "go_consensus",
        Name:      "elections_won_total",
        Help:      "Total elections won by this node",
    })

    EntriesCommitted = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "go_consensus",
        Name:      "entries_committed_total",
        Help:      "Total log entries committed on this node",
    })

    SubmitRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_consensus",
        Name:      "submit_requests_total",
        Help:      "Total submit requests handled by this node",
    }, []string{"result"})

    CommitLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
        Namespace: "go_consensus",
        Name:      "commit_latency_seconds",
        Help:      "Latency from local submission to commit",
        Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
    })

    GRPCConnDials = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "go_consensus",
        Subsystem: "grpc_conn",
        Name:      "dials_total",
        Help:      "Total number of new gRPC connections dialed",
    })
    GRPCConnReuse = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "go_consensus",
        Subsystem: "grpc_conn",
        Name:      "reuse_total",
        Help:      "Total number of gRPC connection reuses from cache",
    })
    GRPCConnEvictions = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "go_consensus",
        Subsystem: "grpc_conn",
        Name:      "evictions_total",
        Help:      "Total number of cached gRPC connections evicted",
    })
    GRPCConnActive = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "go_consensus",
        Subsystem: "grpc_conn",
        Name:      "active",
        Help:      "Number of active cached gRPC connections",
    })

    PeerRPCs = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "go_consensus",
        Subsystem: "peer",
        Name:      "rpcs_total",
        Help:      "Total peer protocol RPCs served, by method and result",
    }, []string{"method", "result"})

    PeerLiveness = prometheus.NewGaugeVec(prometheus.GaugeOpts{
        Namespace: "go_consensus",
        Subsystem: "peer",
        Name:      "alive",
        Help:      "1 if the gossip layer considers the peer alive, else 0",
    }, []string{"peer"})
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(IsLeader)
        prometheus.MustRegister(CurrentTerm)
        prometheus.MustRegister(CommitIndex)
        prometheus.MustRegister(LogLength)
        prometheus.MustRegister(LeaderChanges)
        prometheus.MustRegister(ElectionsStarted)
        prometheus.MustRegister(ElectionsWon)
        prometheus.MustRegister(EntriesCommitted)
        prometheus.MustRegister(SubmitRequests)
        prometheus.MustRegister(CommitLatency)
        prometheus.MustRegister(GRPCConnDials)
        prometheus.MustRegister(GRPCConnReuse)
        prometheus.MustRegister(GRPCConnEvictions)
        prometheus.MustRegister(GRPCConnActive)
        prometheus.MustRegister(PeerRPCs)
        prometheus.MustRegister(PeerLiveness)
    })
}
