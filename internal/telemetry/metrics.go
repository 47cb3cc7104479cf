package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coursequiz"

var (
	AttemptsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attempts_started_total",
		Help:      "Number of quiz attempts opened.",
	})

	AttemptsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attempts_finalized_total",
		Help:      "Number of quiz attempts finalized, by terminal phase and outcome.",
	}, []string{"phase", "outcome"})

	AttemptScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "attempt_score_percent",
		Help:      "Score of finalized attempts in percent.",
		Buckets:   prometheus.LinearBuckets(10, 10, 10),
	})

	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_sessions",
		Help:      "Number of quiz sessions with a running clock.",
	})

	GateDenied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_denied_total",
		Help:      "Number of attempts refused because the learner used all attempts.",
	})

	GateFailOpen = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_fail_open_total",
		Help:      "Number of gate checks allowed because the attempt history could not be read.",
	})

	QuestionLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "question_loads_total",
		Help:      "Number of question set loads, by source.",
	}, []string{"source"})

	EventHandlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_handler_failures_total",
		Help:      "Number of event handlers that returned an error or panicked.",
	}, []string{"event"})
)
