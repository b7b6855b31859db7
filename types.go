package prism

import "github.com/lumenmq/prism/types"

// Re-export interfaces from the types subpackage.
//
// This provides a stable public API (`prism.Logger`, `prism.MetricsCollector`)
// while letting internal packages depend on `types` without importing the
// root package, which would create an import cycle.
type (
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
)
