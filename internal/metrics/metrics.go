package metrics

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dfryer1193/imgcrud"

// Registry keeps process-local counters for the /metrics endpoint and mirrors
// every increment to an OpenTelemetry counter of the same name.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64 // key = fullKey(name, labels)
	meter    metric.Meter
	otelCtrs map[string]metric.Int64Counter
}

func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*atomic.Int64),
		meter:    otel.GetMeterProvider().Meter(meterName),
		otelCtrs: make(map[string]metric.Int64Counter),
	}
}

// fullKey identifies one labelled series, e.g. cache_hits_total{family=item}.
// Labels are ordered by name so equal label sets share a counter.
func fullKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	pairs := make([]string, 0, len(labels))
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		pairs = append(pairs, k+"="+labels[k])
	}
	return name + "{" + strings.Join(pairs, ",") + "}"
}

// Inc adds n to the counter identified by name and labels.
func (r *Registry) Inc(ctx context.Context, name string, labels map[string]string, n int64) {
	r.counter(fullKey(name, labels)).Add(n)

	if inst := r.instrument(name); inst != nil {
		attrs := make([]attribute.KeyValue, 0, len(labels))
		for k, v := range labels {
			attrs = append(attrs, attribute.String(k, v))
		}
		inst.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}

// Value returns the current value of a counter, or 0 if it was never incremented.
func (r *Registry) Value(name string, labels map[string]string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.counters[fullKey(name, labels)]; ok {
		return c.Load()
	}
	return 0
}

func (r *Registry) counter(key string) *atomic.Int64 {
	r.mu.RLock()
	c := r.counters[key]
	r.mu.RUnlock()
	if c != nil {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c = r.counters[key]; c == nil {
		c = &atomic.Int64{}
		r.counters[key] = c
	}
	return c
}

func (r *Registry) instrument(name string) metric.Int64Counter {
	r.mu.RLock()
	inst := r.otelCtrs[name]
	r.mu.RUnlock()
	if inst != nil {
		return inst
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if inst = r.otelCtrs[name]; inst == nil {
		ctr, err := r.meter.Int64Counter(name)
		if err != nil {
			return nil
		}
		r.otelCtrs[name] = ctr
		inst = ctr
	}
	return inst
}

// Snapshot returns a copy of all counters keyed by name and labels.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		out[k] = v.Load()
	}
	return out
}

// Handler serves the counter snapshot as JSON.
func (r *Registry) Handler(c *gin.Context) {
	c.JSON(http.StatusOK, r.Snapshot())
}

// CacheMetrics reports image cache events into a Registry.
type CacheMetrics struct {
	reg *Registry
}

func NewCacheMetrics(reg *Registry) *CacheMetrics {
	return &CacheMetrics{reg: reg}
}

func (m *CacheMetrics) Hit(family string)        { m.inc("cache_hits_total", family) }
func (m *CacheMetrics) Miss(family string)       { m.inc("cache_misses_total", family) }
func (m *CacheMetrics) Expire(family string)     { m.inc("cache_expirations_total", family) }
func (m *CacheMetrics) Invalidate(family string) { m.inc("cache_invalidations_total", family) }

func (m *CacheMetrics) inc(name string, family string) {
	m.reg.Inc(context.Background(), name, map[string]string{"family": family}, 1)
}
