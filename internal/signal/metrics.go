package signal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var generationOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "signal_generation_total",
		Help: "Signal generation attempts by symbol and outcome",
	},
	[]string{"symbol", "outcome"}, // "generated" or a decline reason
)
