// Package transport defines the boundary between the presentation layer and
// the underlying transport. A Transport opens per-subject receive Sessions;
// each Session yields reassembled, ordered, deduplicated Transfers.
//
// The presentation layer (the root prism package) owns exactly one Session
// per subject regardless of how many subscribers are attached to it, and
// releases the Session through a finalizer when the last subscriber departs.
//
// Implementations in this module:
//
//   - transport/loopback: in-process transport for tests and examples
//   - transport/natsjs: NATS JetStream backed transport
package transport
