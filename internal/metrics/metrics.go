package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flowtechs"

// Metrics holds the service's collectors. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	OAuthInitiations   *prometheus.CounterVec
	OAuthCallbacks     *prometheus.CounterVec
	SourceUpserts      *prometheus.CounterVec
	RealtimeResubs     prometheus.Counter
	RealtimeStale      prometheus.Counter
	WorkerEvents       *prometheus.CounterVec
	PublishFailures    prometheus.Counter
	CredentialFailures prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		OAuthInitiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_initiations_total",
			Help:      "Shopify OAuth initiations by result.",
		}, []string{"result"}),
		OAuthCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_callbacks_total",
			Help:      "Shopify OAuth callbacks by outcome code.",
		}, []string{"outcome"}),
		SourceUpserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_upserts_total",
			Help:      "Source upserts by result (created or updated).",
		}, []string{"result"}),
		RealtimeResubs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_resubscribe_total",
			Help:      "Live sources feed resubscription attempts.",
		}),
		RealtimeStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_stale_total",
			Help:      "Live sources feeds that gave up reconnecting.",
		}),
		WorkerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_events_total",
			Help:      "Source events processed by the worker, by type and outcome.",
		}, []string{"type", "outcome"}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Source events that could not be published.",
		}),
		CredentialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_check_failures_total",
			Help:      "Sources marked inactive after a failed credential check.",
		}),
	}

	reg.MustRegister(
		m.OAuthInitiations,
		m.OAuthCallbacks,
		m.SourceUpserts,
		m.RealtimeResubs,
		m.RealtimeStale,
		m.WorkerEvents,
		m.PublishFailures,
		m.CredentialFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
