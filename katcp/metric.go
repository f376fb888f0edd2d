package katcp

import (
	"sync/atomic"
)

// ClientMetrics contains atomic metrics for a Client.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ClientMetrics struct {
	// RequestSendCount indicates the number of requests submitted, blocking
	// and non-blocking combined.
	RequestSendCount atomic.Uint64
	// ReplyRecvCount indicates the number of replies recorded for pending requests.
	ReplyRecvCount atomic.Uint64
	// InformRecvCount indicates the number of informs recorded for pending requests.
	InformRecvCount atomic.Uint64

	// RequestFailCount indicates the number of requests answered with a non-ok status.
	RequestFailCount atomic.Uint64
	// RequestTimeoutCount indicates the number of blocking requests that timed out.
	RequestTimeoutCount atomic.Uint64

	// EvictionCount indicates the number of pending requests evicted to admit new ones.
	EvictionCount atomic.Uint64
	// UnknownCorrelationCount indicates the number of deliveries that named an
	// unknown correlation id.
	UnknownCorrelationCount atomic.Uint64
	// CallbackDropCount indicates the number of callback invocations dropped
	// because the dispatch queue stayed full.
	CallbackDropCount atomic.Uint64

	// PendingGauge indicates the number of requests currently pending.
	PendingGauge atomic.Int64
}

func (m *ClientMetrics) incRequestSendCount() {
	m.RequestSendCount.Add(1)
}

func (m *ClientMetrics) incReplyRecvCount() {
	m.ReplyRecvCount.Add(1)
}

func (m *ClientMetrics) incInformRecvCount() {
	m.InformRecvCount.Add(1)
}

func (m *ClientMetrics) incRequestFailCount() {
	m.RequestFailCount.Add(1)
}

func (m *ClientMetrics) incRequestTimeoutCount() {
	m.RequestTimeoutCount.Add(1)
}

func (m *ClientMetrics) incEvictionCount() {
	m.EvictionCount.Add(1)
}

func (m *ClientMetrics) incUnknownCorrelationCount() {
	m.UnknownCorrelationCount.Add(1)
}

func (m *ClientMetrics) incCallbackDropCount() {
	m.CallbackDropCount.Add(1)
}

func (m *ClientMetrics) setPendingGauge(n int64) {
	m.PendingGauge.Store(n)
}
