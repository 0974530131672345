package rewarder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters served by the Prometheus endpoint when monitoring is enabled.
var (
	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sra_jobs_processed_total",
		Help: "Reward jobs processed, by final status of the delivery (completed, retried, failed).",
	}, []string{"status"})

	awardsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sra_awards_sent_total",
		Help: "Achievement awards granted, by achievement name.",
	}, []string{"achievement"})
)
