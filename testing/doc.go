// Package testing provides helpers for testing code that uses prism:
// an embedded NATS server with JetStream for transport/natsjs tests and a
// testing.TB backed logger.
//
// Import it with an alias to avoid clashing with the standard library:
//
//	import prismtest "github.com/lumenmq/prism/testing"
package testing
