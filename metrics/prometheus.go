package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func NewPromCounter(m prometheus.Counter) Observer {
	return &promMetric{
		observe: func(val float64, labels ...string) {
			m.Add(val)
		},
		Collector: m,
	}
}

// for histogram or summary vecs
func NewPromObserverVec(m prometheus.ObserverVec) Observer {
	return &promMetric{
		observe: func(val float64, labels ...string) {
			m.WithLabelValues(labels...).Observe(val)
		},
		Collector: m,
	}
}

func NewPromHistogram(m prometheus.Histogram) Observer {
	return &promMetric{
		observe: func(val float64, labels ...string) {
			m.Observe(val)
		},
		Collector: m,
	}
}

type promMetric struct {
	observe func(val float64, labels ...string)
	prometheus.Collector
}

func (m *promMetric) Observe(val float64, labels ...string) {
	m.observe(val, labels...)
}
