package escrow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals
var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trustpay",
		Subsystem: "escrow",
		Name:      "transitions_total",
		Help:      "Deal transitions by kind and outcome.",
	}, []string{"transition", "outcome"})

	sweepReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trustpay",
		Subsystem: "escrow",
		Name:      "auto_released_total",
		Help:      "Deals completed by the auto-release sweep.",
	})
)

func observeTransition(tr Transition, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	transitionsTotal.WithLabelValues(string(tr), outcome).Inc()
}
