// Package metrics собирает метрики клиента кэша в Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coffeecache"

// Значения метки result.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultHit   = "hit"
	ResultMiss  = "miss"
)

// Recorder получает один вызов на каждую завершенную операцию.
type Recorder interface {
	// Operation записывает итог операции; kind пустой при успехе.
	Operation(op, kind string, elapsed time.Duration)
	// Read записывает попадание или промах чтения.
	Read(hit bool)
}

// Noop ничего не записывает.
type Noop struct{}

func (Noop) Operation(string, string, time.Duration) {}
func (Noop) Read(bool)                               {}

// Prometheus реализует Recorder счетчиками и гистограммой длительности.
type Prometheus struct {
	operations *prometheus.CounterVec
	errors     *prometheus.CounterVec
	reads      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPrometheus регистрирует коллекторы в reg. При ошибке уже
// зарегистрированные коллекторы снимаются.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Cache operations by operation and result.",
		}, []string{"op", "result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed cache operations by operation and error kind.",
		}, []string{"op", "kind"}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_total",
			Help:      "Cache reads by hit or miss.",
		}, []string{"result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Cache operation latency.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 2.5},
		}, []string{"op"}),
	}

	collectors := []prometheus.Collector{p.operations, p.errors, p.reads, p.duration}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			for _, registered := range collectors[:i] {
				reg.Unregister(registered)
			}
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) Operation(op, kind string, elapsed time.Duration) {
	result := ResultOK
	if kind != "" {
		result = ResultError
		p.errors.WithLabelValues(op, kind).Inc()
	}
	p.operations.WithLabelValues(op, result).Inc()
	p.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (p *Prometheus) Read(hit bool) {
	if hit {
		p.reads.WithLabelValues(ResultHit).Inc()
		return
	}
	p.reads.WithLabelValues(ResultMiss).Inc()
}
