package buffer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/kitsune-db/kitsunedb/core/storage/page"
)

// poolMetrics wraps the buffer pool's OTel instruments. Instruments come from
// the global meter provider, so they are no-ops until a binary installs one.
type poolMetrics struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	evictions metric.Int64Counter
	flushes   metric.Int64Counter
}

func newPoolMetrics() *poolMetrics {
	meter := otel.Meter("kitsunedb/bufferpool")
	m := &poolMetrics{}
	m.hits, _ = meter.Int64Counter("bufferpool.fetch.hits",
		metric.WithDescription("Page fetches served from the pool"))
	m.misses, _ = meter.Int64Counter("bufferpool.fetch.misses",
		metric.WithDescription("Page fetches that required disk reads"))
	m.evictions, _ = meter.Int64Counter("bufferpool.evictions",
		metric.WithDescription("Frames reclaimed from resident pages"))
	m.flushes, _ = meter.Int64Counter("bufferpool.flushes",
		metric.WithDescription("Dirty pages written back to disk"))
	return m
}

func (m *poolMetrics) hit()  { m.hits.Add(context.Background(), 1) }
func (m *poolMetrics) miss() { m.misses.Add(context.Background(), 1) }

func (m *poolMetrics) eviction(id page.PageID) {
	if id.IsValid() {
		m.evictions.Add(context.Background(), 1)
	}
}

func (m *poolMetrics) flush() { m.flushes.Add(context.Background(), 1) }
