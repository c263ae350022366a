package bplustree

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// treeMetrics wraps the index's OTel instruments, created from the global
// meter provider.
type treeMetrics struct {
	searches      metric.Int64Counter
	inserts       metric.Int64Counter
	removes       metric.Int64Counter
	splits        metric.Int64Counter
	coalesces     metric.Int64Counter
	redistributes metric.Int64Counter
}

func newTreeMetrics() *treeMetrics {
	meter := otel.Meter("kitsunedb/bplustree")
	m := &treeMetrics{}
	m.searches, _ = meter.Int64Counter("bplustree.searches",
		metric.WithDescription("Point lookups"))
	m.inserts, _ = meter.Int64Counter("bplustree.inserts",
		metric.WithDescription("Key insertions attempted"))
	m.removes, _ = meter.Int64Counter("bplustree.removes",
		metric.WithDescription("Key removals attempted"))
	m.splits, _ = meter.Int64Counter("bplustree.splits",
		metric.WithDescription("Leaf and internal page splits"))
	m.coalesces, _ = meter.Int64Counter("bplustree.coalesces",
		metric.WithDescription("Page merges after underflow"))
	m.redistributes, _ = meter.Int64Counter("bplustree.redistributes",
		metric.WithDescription("Entry moves between siblings after underflow"))
	return m
}

func (m *treeMetrics) search()       { m.searches.Add(context.Background(), 1) }
func (m *treeMetrics) insert()       { m.inserts.Add(context.Background(), 1) }
func (m *treeMetrics) remove()       { m.removes.Add(context.Background(), 1) }
func (m *treeMetrics) split()        { m.splits.Add(context.Background(), 1) }
func (m *treeMetrics) coalesce()     { m.coalesces.Add(context.Background(), 1) }
func (m *treeMetrics) redistribute() { m.redistributes.Add(context.Background(), 1) }
