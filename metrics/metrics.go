// Package metrics wraps prometheus/client_golang behind the narrow
// counter/gauge constructors the teacher's common/dbutils/bucket.go
// calls (metrics.NewRegisteredCounter("db/preimage/total", nil)),
// generalized for the allocator, store and organizer instrumentation
// points named across spec.md §4-§5.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewRegisteredCounter registers and returns a counter under name. A nil
// registry falls back to the default prometheus registry, matching the
// teacher's nil-tags convention.
func NewRegisteredCounter(name string, reg prometheus.Registerer) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: sanitize(name),
		Help: name,
	})
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(c)
	return c
}

// NewRegisteredGauge registers and returns a gauge under name.
func NewRegisteredGauge(name string, reg prometheus.Registerer) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: sanitize(name),
		Help: name,
	})
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(g)
	return g
}

func sanitize(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out[i] = c
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

// Allocator, store and organizer instrumentation points, registered once
// at package init like the teacher's package-level metric vars.
var (
	AllocatorGrowths  = NewRegisteredCounter("engine/allocator/growths", nil)
	OrganizerCommits  = NewRegisteredCounter("engine/organizer/commits", nil)
	OrganizerRejects  = NewRegisteredCounter("engine/organizer/rejects", nil)
	PoolSize          = NewRegisteredGauge("engine/txpool/size", nil)
)
