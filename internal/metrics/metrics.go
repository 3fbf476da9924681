package metrics

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "witswatch"

// Recorder collects the counters of one job invocation. The jobs are short
// lived, so the registry is pushed rather than scraped.
type Recorder struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	softMisses    *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	decodeErrors  *prometheus.CounterVec
	columns       *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	maxPrice      prometheus.Gauge
	islandMean    *prometheus.GaugeVec
	lastSuccess   prometheus.Gauge
	backlogLength prometheus.Gauge
}

// NewRecorder registers every collector on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Job invocations by task and outcome.",
		}, []string{"task", "outcome"}),
		softMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "soft_misses_total",
			Help: "Kinds for which no candidate file was available.",
		}, []string{"kind"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetch_errors_total",
			Help: "Transport failures by kind.",
		}, []string{"kind"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "decode_errors_total",
			Help: "Payloads that could not be decoded by kind.",
		}, []string{"kind"}),
		columns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "columns_appended_total",
			Help: "Columns folded into rolling tables.",
		}, []string{"table"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_total",
			Help: "Alert evaluations by result.",
		}, []string{"result"}),
		maxPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "interval_max_price",
			Help: "Maximum node price of the latest interval.",
		}),
		islandMean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "island_mean_price",
			Help: "Mean node price per island of the latest interval.",
		}, []string{"island"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last completed job.",
		}),
		backlogLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "backlog_entries",
			Help: "Unresolved interval files awaiting retry.",
		}),
	}
	r.registry.MustRegister(
		r.cycles, r.softMisses, r.fetchErrors, r.decodeErrors, r.columns,
		r.alerts, r.maxPrice, r.islandMean, r.lastSuccess, r.backlogLength,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Cycle counts one job run.
func (r *Recorder) Cycle(task, outcome string) {
	r.cycles.WithLabelValues(task, outcome).Inc()
}

// SoftMiss counts a kind whose candidates were all unavailable.
func (r *Recorder) SoftMiss(kind string) { r.softMisses.WithLabelValues(kind).Inc() }

// FetchError counts a transport failure.
func (r *Recorder) FetchError(kind string) { r.fetchErrors.WithLabelValues(kind).Inc() }

// DecodeError counts an undecodable payload.
func (r *Recorder) DecodeError(kind string) { r.decodeErrors.WithLabelValues(kind).Inc() }

// Appended counts a column folded into the named table.
func (r *Recorder) Appended(table string) { r.columns.WithLabelValues(table).Inc() }

// Alert counts an alert evaluation result such as sent, quiet or incomplete.
func (r *Recorder) Alert(result string) { r.alerts.WithLabelValues(result).Inc() }

// Interval records the headline figures of the latest interval.
func (r *Recorder) Interval(max float64, islands map[string]float64) {
	r.maxPrice.Set(max)
	for island, v := range islands {
		r.islandMean.WithLabelValues(island).Set(v)
	}
}

// Backlog records the number of unresolved files.
func (r *Recorder) Backlog(n int) { r.backlogLength.Set(float64(n)) }

// Succeeded stamps the completion time.
func (r *Recorder) Succeeded() { r.lastSuccess.SetToCurrentTime() }

// Pusher sends a registry to a Prometheus Pushgateway.
type Pusher struct {
	endpoint string
	job      string
	grouping map[string]string
}

// NewPusher returns nil when no endpoint is configured.
func NewPusher(endpoint, job string, grouping map[string]string) *Pusher {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}
	return &Pusher{endpoint: endpoint, job: strings.TrimSpace(job), grouping: grouping}
}

// Push sends the recorder's registry. A nil pusher is a no-op.
func (p *Pusher) Push(ctx context.Context, r *Recorder) error {
	if p == nil || r == nil {
		return nil
	}
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}

	pusher := push.New(p.endpoint, p.job).Gatherer(r.registry)
	for key, value := range p.grouping {
		if key == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}
	return pusher.PushContext(ctx)
}
