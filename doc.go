// Package prism implements the subscription side of a pub/sub presentation
// layer on top of a pluggable transport.
//
// Many independent consumers can subscribe to the same subject without each
// of them opening a separate transport session: the first subscriber opens
// the session and starts a shared receive loop, later subscribers attach to
// it, and the session is released when the last subscriber closes. Each
// transfer is decoded exactly once and the decoded message is fanned out by
// reference to every subscriber's private queue, so a slow consumer never
// stalls a fast one.
//
// # Quick Start
//
//	tr := loopback.New(loopback.Config{})
//	p := prism.NewPresentation(tr)
//	defer p.Close()
//
//	sub, err := prism.Subscribe(ctx, p, "sensor.temperature", codec.JSON[Reading]())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sub.Close()
//
//	for msg, transfer := range sub.Messages(ctx) {
//	    _ = transfer // delivery metadata
//	    process(msg)
//	}
//
// # Key Properties
//
//   - One transport session per subject, reference counted by subscribers
//   - Single-flight decoding: decode once, distribute by reference
//   - Per-subscriber bounded queues with drop-newest overrun accounting
//   - Exact timeout semantics: a non-positive timeout never suspends
//   - A transport fault terminates the shared receiver once and is replayed
//     to every attached subscriber as a closed error chained to the fault
//
// Because decoded messages are shared by reference, a consumer that mutates
// a received message in place can affect other consumers of the same
// subject. Clone messages before mutating them.
package prism
