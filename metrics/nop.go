// Package metrics provides MetricsCollector implementations for the prism
// library: a no-op collector used by default and a Prometheus-backed one.
package metrics

import "github.com/lumenmq/prism/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external metrics
// collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordMessage discards the message counter update.
func (n *NopMetrics) RecordMessage(_ /* subject */ string) {}

// RecordOverrun discards the overrun counter update.
func (n *NopMetrics) RecordOverrun(_ /* subject */ string) {}

// RecordDeserializationFailure discards the deserialization failure counter update.
func (n *NopMetrics) RecordDeserializationFailure(_ /* subject */ string) {}

// RecordReceiverFault discards the receiver fault counter update.
func (n *NopMetrics) RecordReceiverFault(_ /* subject */ string) {}

// SetListenerCount discards the listener gauge update.
func (n *NopMetrics) SetListenerCount(_ /* subject */ string, _ /* count */ int) {}

// RecordLeakedSubscriber discards the leaked subscriber counter update.
func (n *NopMetrics) RecordLeakedSubscriber() {}
