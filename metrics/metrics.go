// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stock_trader"

type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestCount    *prometheus.CounterVec

	TradesTotal   *prometheus.CounterVec
	TradeVolume   *prometheus.CounterVec
	TradeRejected *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"route", "method", "status"}),
		RequestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Executed trades",
		}, []string{"type"}),
		TradeVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_value_total",
			Help:      "Cash value of executed trades",
		}, []string{"type"}),
		TradeRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_rejected_total",
			Help:      "Trades rejected by validation or business rules",
		}, []string{"type", "reason"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.RequestDuration,
		m.RequestCount,
		m.TradesTotal,
		m.TradeVolume,
		m.TradeRejected,
		collectors.NewGoCollector(),
	)
	return m
}

// TradeExecuted counts one successful trade of the given cash value.
func (m *Metrics) TradeExecuted(kind string, value float64) {
	m.TradesTotal.WithLabelValues(kind).Inc()
	m.TradeVolume.WithLabelValues(kind).Add(value)
}

// TradeFailed counts a rejected trade.
func (m *Metrics) TradeFailed(kind, reason string) {
	m.TradeRejected.WithLabelValues(kind, reason).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
