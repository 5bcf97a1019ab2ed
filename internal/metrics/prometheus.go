package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is a Collector backed by prometheus counters and gauges,
// labeled by cache layer. Metric vectors are created lazily on first use
// and registered with the supplied registerer.
type Prometheus struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewPrometheus creates a prometheus-backed collector. A nil registerer
// defaults to the process-wide default registry.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Prometheus{
		registerer: reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

// IncCounter increments a counter metric by delta for the given layer.
// Registration never panics: a collector already registered elsewhere (two
// instances sharing one registerer) is reused.
func (p *Prometheus) IncCounter(name, layer string, delta int64) {
	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name}, []string{"layer"})
		if err := p.registerer.Register(vec); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					vec = existing
				}
			}
		}
		p.counters[name] = vec
	}
	p.mu.Unlock()

	vec.WithLabelValues(layer).Add(float64(delta))
}

// SetGauge sets a gauge metric to value for the given layer.
func (p *Prometheus) SetGauge(name, layer string, value int64) {
	p.mu.Lock()
	vec, ok := p.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name}, []string{"layer"})
		if err := p.registerer.Register(vec); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
					vec = existing
				}
			}
		}
		p.gauges[name] = vec
	}
	p.mu.Unlock()

	vec.WithLabelValues(layer).Set(float64(value))
}
