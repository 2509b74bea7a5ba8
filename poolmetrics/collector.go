// Package poolmetrics exports chunkpool statistics to Prometheus.
package poolmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pavanmanishd/chunkpool"
)

// DefaultNamespace prefixes every metric name unless overridden.
const DefaultNamespace = "chunkpool"

// Source yields pool statistics. Scrapes run on the registry's goroutine,
// so plain *chunkpool.Pool values are only safe here if nothing else uses
// them concurrently; prefer *chunkpool.SafePool.
type Source interface {
	Stats() chunkpool.Stats
}

// Collector implements prometheus.Collector for one pool.
type Collector struct {
	src Source

	chunkSize   *prometheus.Desc
	capacity    *prometheus.Desc
	inUse       *prometheus.Desc
	available   *prometheus.Desc
	arenas      *prometheus.Desc
	reserved    *prometheus.Desc
	utilization *prometheus.Desc
	allocs      *prometheus.Desc
	frees       *prometheus.Desc
	misses      *prometheus.Desc
	expansions  *prometheus.Desc
}

// NewCollector returns a collector labelled pool=name. An empty namespace
// means DefaultNamespace.
func NewCollector(namespace, name string, src Source) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	labels := prometheus.Labels{"pool": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", metric), help, nil, labels)
	}
	return &Collector{
		src:         src,
		chunkSize:   desc("chunk_size_bytes", "Size of every chunk in bytes"),
		capacity:    desc("capacity_chunks", "Total chunks across all arenas"),
		inUse:       desc("in_use_chunks", "Chunks currently held by callers"),
		available:   desc("available_chunks", "Chunks on the free list"),
		arenas:      desc("arenas", "Arenas acquired from the backend"),
		reserved:    desc("reserved_bytes", "Arena bytes obtained from the backend"),
		utilization: desc("utilization_ratio", "Ratio of chunks in use to capacity"),
		allocs:      desc("allocs_total", "Successful allocations"),
		frees:       desc("frees_total", "Chunks returned to the pool"),
		misses:      desc("misses_total", "Allocations that found the pool exhausted"),
		expansions:  desc("expansions_total", "Successful pool expansions"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.chunkSize
	ch <- c.capacity
	ch <- c.inUse
	ch <- c.available
	ch <- c.arenas
	ch <- c.reserved
	ch <- c.utilization
	ch <- c.allocs
	ch <- c.frees
	ch <- c.misses
	ch <- c.expansions
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge(c.chunkSize, float64(s.ChunkSize))
	gauge(c.capacity, float64(s.Capacity))
	gauge(c.inUse, float64(s.InUse))
	gauge(c.available, float64(s.Available))
	gauge(c.arenas, float64(s.Arenas))
	gauge(c.reserved, float64(s.BytesReserved))
	gauge(c.utilization, s.Utilization)
	counter(c.allocs, s.Allocs)
	counter(c.frees, s.Frees)
	counter(c.misses, s.Misses)
	counter(c.expansions, s.Expansions)
}

var _ prometheus.Collector = (*Collector)(nil)
