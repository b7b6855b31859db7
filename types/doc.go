// Package types contains the public interfaces shared between the root prism
// package and its subpackages. Keeping them here lets internal packages
// depend on them without importing the root package.
package types
