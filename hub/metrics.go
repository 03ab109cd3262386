package hub

import "sync/atomic"

type MetricsSnapshot struct {
	Ports   int64
	Flows   int64
	Routed  int64
	Dropped int64
	Posted  int64
	Backlog int64
}

type Metrics struct {
	ports   atomic.Int64
	flows   atomic.Int64
	routed  atomic.Int64
	dropped atomic.Int64
	posted  atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordPort(delta int) {
	m.ports.Add(int64(delta))
}

func (m *Metrics) RecordFlow(delta int) {
	m.flows.Add(int64(delta))
}

func (m *Metrics) RecordRouted(delta int) {
	m.routed.Add(int64(delta))
}

func (m *Metrics) RecordDropped(delta int) {
	m.dropped.Add(int64(delta))
}

func (m *Metrics) RecordPosted(delta int) {
	m.posted.Add(int64(delta))
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Ports:   m.ports.Load(),
		Flows:   m.flows.Load(),
		Routed:  m.routed.Load(),
		Dropped: m.dropped.Load(),
		Posted:  m.posted.Load(),
	}
}
