package sigserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigserver_requests_total",
		Help: "Signature requests by chain, sigType and result code.",
	}, []string{"chain", "sig_type", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sigserver_request_duration_seconds",
		Help:    "Time spent judging a signature request.",
		Buckets: prometheus.DefBuckets,
	}, []string{"chain", "sig_type"})

	signaturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigserver_signatures_total",
		Help: "New signatures issued, replays excluded.",
	}, []string{"chain"})
)
