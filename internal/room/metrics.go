package room

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	membersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tableproto_connected_members",
		Help: "Members currently connected across all rooms.",
	})

	mutationsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tableproto_mutations_applied_total",
		Help: "Mutations applied and broadcast, by operation.",
	}, []string{"op"})

	mutationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tableproto_mutations_rejected_total",
		Help: "Mutations rejected without state change, by reason.",
	}, []string{"reason"})
)
