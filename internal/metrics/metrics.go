// Package metrics exposes Prometheus metrics derived from run events.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mescon/Cachearr/internal/domain"
	"github.com/mescon/Cachearr/internal/eventbus"
	"github.com/mescon/Cachearr/internal/logger"
)

const namespace = "cachearr"

// dropCounter is implemented by event buses that count dropped deliveries.
type dropCounter interface {
	Dropped() int64
}

// MetricsService exposes Prometheus metrics for Cachearr on its own registry.
type MetricsService struct {
	eventBus eventbus.Publisher
	registry *prometheus.Registry

	runsTotal          *prometheus.CounterVec
	entriesTotal       *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec

	runInProgress prometheus.Gauge
	lastRun       prometheus.Gauge
	lastRunAdded  prometheus.Gauge

	runDuration prometheus.Histogram
}

// NewMetricsService creates the collectors and registers them on a fresh
// registry together with the Go and process collectors.
func NewMetricsService(eb eventbus.Publisher) *MetricsService {
	m := &MetricsService{
		eventBus: eb,
		registry: prometheus.NewRegistry(),

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"}, // completed, empty, failed
		),

		entriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_total",
				Help:      "Total number of processed cache entries by outcome",
			},
			[]string{"outcome"}, // added, failed
		),

		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of notifications sent by outcome",
			},
			[]string{"outcome"}, // sent, failed
		),

		runInProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_in_progress",
				Help:      "1 while a pipeline run is executing",
			},
		),

		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last pipeline run finished",
			},
		),

		lastRunAdded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_added",
				Help:      "Torrents added to Real-Debrid by the last run",
			},
		),

		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of pipeline runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runsTotal,
		m.entriesTotal,
		m.notificationsTotal,
		m.runInProgress,
		m.lastRun,
		m.lastRunAdded,
		m.runDuration,
	)

	if dc, ok := eb.(dropCounter); ok {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "eventbus_dropped_events",
				Help:      "Events not delivered because a subscriber was saturated",
			},
			func() float64 { return float64(dc.Dropped()) },
		))
	}

	return m
}

// Start subscribes to events and updates metrics
func (m *MetricsService) Start() {
	m.eventBus.Subscribe(domain.RunStarted, m.handleRunStarted)
	m.eventBus.Subscribe(domain.EntryProcessed, m.handleEntryProcessed)
	m.eventBus.Subscribe(domain.RunCompleted, m.handleRunFinished)
	m.eventBus.Subscribe(domain.RunFailed, m.handleRunFinished)
	m.eventBus.Subscribe(domain.NotificationSent, m.handleNotificationSent)
	m.eventBus.Subscribe(domain.NotificationFailed, m.handleNotificationFailed)

	logger.Infof("Metrics service started")
}

// Handler returns the HTTP handler for /metrics.
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsService) handleRunStarted(event domain.Event) {
	m.runInProgress.Set(1)
}

func (m *MetricsService) handleEntryProcessed(event domain.Event) {
	data, ok := event.ParseEntryProcessedData()
	if !ok {
		logger.Debugf("Metrics: EntryProcessed event %d has no title", event.ID)
		return
	}
	if data.Added {
		m.entriesTotal.WithLabelValues("added").Inc()
	} else {
		m.entriesTotal.WithLabelValues("failed").Inc()
	}
}

func (m *MetricsService) handleRunFinished(event domain.Event) {
	m.runInProgress.Set(0)

	summary, ok := event.ParseRunSummary()
	if !ok {
		return
	}
	m.runsTotal.WithLabelValues(string(summary.Status)).Inc()
	m.lastRunAdded.Set(float64(summary.Added))

	finished := event.CreatedAt
	if finished.IsZero() {
		m.lastRun.SetToCurrentTime()
	} else {
		m.lastRun.Set(float64(finished.Unix()))
	}
	if seconds, ok := event.GetFloat64("duration_seconds"); ok && seconds > 0 {
		m.runDuration.Observe(seconds)
	}
}

func (m *MetricsService) handleNotificationSent(event domain.Event) {
	m.notificationsTotal.WithLabelValues("sent").Inc()
}

func (m *MetricsService) handleNotificationFailed(event domain.Event) {
	m.notificationsTotal.WithLabelValues("failed").Inc()
}
