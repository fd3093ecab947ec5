package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the game server. Each
// server has its own registry.
type Metrics struct {
	registry  *prometheus.Registry
	startTime time.Time

	heartbeatsTotal   prometheus.Counter
	heartbeatDuration prometheus.Histogram
	heartbeatFailures prometheus.Counter
	eventsTotal       *prometheus.CounterVec
	connectionsTotal  prometheus.Counter
	loginsTotal       *prometheus.CounterVec
	commandsTotal     *prometheus.CounterVec
	linesTotal        prometheus.Counter
	playersConnected  prometheus.Gauge
}

// NewMetrics creates and registers the server's metrics.
func NewMetrics(conns *ConnManager, startTime time.Time) *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		startTime: startTime,
		heartbeatsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gotinymud_heartbeats_total",
			Help: "Heartbeat passes fired since server start.",
		}),
		heartbeatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gotinymud_heartbeat_duration_seconds",
			Help:    "Time spent running one heartbeat pass.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		heartbeatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gotinymud_heartbeat_failures_total",
			Help: "Heartbeat handlers that panicked.",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gotinymud_events_total",
			Help: "Queued events by outcome.",
		}, []string{"outcome"}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gotinymud_connections_total",
			Help: "Total connections since server start.",
		}),
		loginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gotinymud_logins_total",
			Help: "Completed logins by kind.",
		}, []string{"kind"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gotinymud_commands_total",
			Help: "Commands run by name.",
		}, []string{"command"}),
		linesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gotinymud_input_lines_total",
			Help: "Input lines received from logged-in players.",
		}),
		playersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gotinymud_players_connected",
			Help: "Number of currently connected players.",
		}),
	}

	m.registry.MustRegister(
		m.heartbeatsTotal,
		m.heartbeatDuration,
		m.heartbeatFailures,
		m.eventsTotal,
		m.connectionsTotal,
		m.loginsTotal,
		m.commandsTotal,
		m.linesTotal,
		m.playersConnected,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "gotinymud_connections",
			Help: "Number of open connections, logged in or not.",
		}, func() float64 { return float64(conns.Count()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "gotinymud_uptime_seconds",
			Help: "Server uptime in seconds.",
		}, func() float64 { return time.Since(m.startTime).Seconds() }),
		collectors.NewGoCollector(),
	)

	return m
}

// HeartbeatPass implements heartbeat.Observer.
func (m *Metrics) HeartbeatPass(d time.Duration, _ int, failures int) {
	m.heartbeatsTotal.Inc()
	m.heartbeatDuration.Observe(d.Seconds())
	m.heartbeatFailures.Add(float64(failures))
}

// EventsDrained implements heartbeat.Observer.
func (m *Metrics) EventsDrained(ran, dropped int) {
	m.eventsTotal.WithLabelValues("executed").Add(float64(ran))
	m.eventsTotal.WithLabelValues("dropped").Add(float64(dropped))
}

// CommandRun counts one command execution.
func (m *Metrics) CommandRun(name string) {
	m.commandsTotal.WithLabelValues(name).Inc()
}

// Handler returns an http.Handler serving this server's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve runs the metrics endpoint on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
