package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/betbot/hlarb/internal/domain"
)

const namespace = "hlarb"

// Metrics 下单与对账指标。使用独立 registry，同一进程可以创建多份（测试）。
type Metrics struct {
	registry *prometheus.Registry

	OrdersTotal     *prometheus.CounterVec
	SubmitLatency   *prometheus.HistogramVec
	ReconcileTotal  *prometheus.CounterVec
	BreakerHalted   prometheus.Gauge
	DryRunIntents   *prometheus.CounterVec
	SkippedRequests *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Submitted orders by outcome",
		}, []string{"symbol", "side", "outcome"}),
		SubmitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_submit_seconds",
			Help:      "Order submit round trip in seconds",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10},
		}, []string{"symbol"}),
		ReconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_total",
			Help:      "Balance reconciliations by result",
		}, []string{"result"}),
		BreakerHalted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_halted",
			Help:      "1 when the circuit breaker has halted trading",
		}),
		DryRunIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dry_run_intents_total",
			Help:      "Order intents built but not submitted",
		}, []string{"symbol", "side"}),
		SkippedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_requests_total",
			Help:      "Trade requests whose quantity rounded to zero",
		}, []string{"symbol"}),
	}
	m.registry.MustRegister(
		m.OrdersTotal,
		m.SubmitLatency,
		m.ReconcileTotal,
		m.BreakerHalted,
		m.DryRunIntents,
		m.SkippedRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOrder 记录一次已提交订单的结果
func (m *Metrics) ObserveOrder(symbol string, side domain.Side, outcome domain.OrderOutcome, latency time.Duration) {
	if m == nil || outcome == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(symbol, string(side), domain.OutcomeKind(outcome)).Inc()
	if latency > 0 {
		m.SubmitLatency.WithLabelValues(symbol).Observe(latency.Seconds())
	}
}

func (m *Metrics) ObserveDryRun(symbol string, side domain.Side) {
	if m == nil {
		return
	}
	m.DryRunIntents.WithLabelValues(symbol, string(side)).Inc()
}

func (m *Metrics) ObserveSkip(symbol string) {
	if m == nil {
		return
	}
	m.SkippedRequests.WithLabelValues(symbol).Inc()
}

// ObserveReconcile err 为 nil 记为 ok
func (m *Metrics) ObserveReconcile(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ReconcileTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetBreakerHalted(halted bool) {
	if m == nil {
		return
	}
	if halted {
		m.BreakerHalted.Set(1)
	} else {
		m.BreakerHalted.Set(0)
	}
}

// Handler Prometheus 文本格式输出
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather 测试与调试用
func (m *Metrics) Gather() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range metric.GetLabel() {
				key += "|" + lp.GetName() + "=" + lp.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				out[key] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				out[key] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}
