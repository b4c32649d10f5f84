package metrics

import "github.com/prometheus/client_golang/prometheus"

type Observer interface {
	Observe(val float64, labels ...string)

	// for now we will tightly couple to the prometheus collector type
	// the go otel metrics sdk also has a prometheus adapter that implements this interface.
	prometheus.Collector
}

// Metrics covers the dispatch pipeline: messages in, instructions parsed,
// authorization outcomes, prompt lifecycle.
type Metrics struct {
	MessagesHeard      Observer
	PromptsRouted      Observer
	InstructionsParsed Observer
	CommandsAuthorized Observer
	CommandsDenied     Observer
	CooldownHits       Observer
	PromptsCreated     Observer
	PromptTimeouts     Observer
	ExecLatency        Observer
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesHeard,
		m.PromptsRouted,
		m.InstructionsParsed,
		m.CommandsAuthorized,
		m.CommandsDenied,
		m.CooldownHits,
		m.PromptsCreated,
		m.PromptTimeouts,
		m.ExecLatency,
	}
}

// New returns the pipeline metrics with their prometheus collectors.
func New() *Metrics {
	return &Metrics{
		MessagesHeard: NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "lavenza",
					Subsystem: "listen",
					Name:      "messages",
					Help:      "Number of messages heard across all clients.",
				},
			),
		),
		PromptsRouted: NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "lavenza",
					Subsystem: "prompt",
					Name:      "routed",
					Help:      "Number of messages consumed by active prompts.",
				},
			),
		),
		InstructionsParsed: NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "lavenza",
					Subsystem: "listen",
					Name:      "instructions",
					Help:      "Number of messages that parsed into command invocations.",
				},
			),
		),
		CommandsAuthorized: NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "lavenza",
					Subsystem: "authorize",
					Name:      "allowed",
					Help:      "Number of invocations that passed authorization.",
				},
			),
		),
		CommandsDenied: NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "lavenza",
					Subsystem: "authorize",
					Name:      "denied",
					Help:      "Number of invocations refused by authorization.",
				},
			),
		),
		CooldownHits: NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "lavenza",
					Subsystem: "authorize",
					Name:      "cooldown_hits",
					Help:      "Number of invocations refused because a cooldown was armed.",
				},
			),
		),
		PromptsCreated: NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "lavenza",
					Subsystem: "prompt",
					Name:      "created",
					Help:      "Number of prompts registered by commands.",
				},
			),
		),
		PromptTimeouts: NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "lavenza",
					Subsystem: "prompt",
					Name:      "timeouts",
					Help:      "Number of prompts that expired with no reply.",
				},
			),
		),
		ExecLatency: NewPromObserverVec(
			prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 5, 10},
					Namespace: "lavenza",
					Subsystem: "commands",
					Name:      "exec_latency",
					Help:      "How long command bodies run in seconds.",
				},
				[]string{"command"},
			),
		),
	}
}
