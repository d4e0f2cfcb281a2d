// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): embedding and reranker providers, the vector
// store, the parent side-store and the result store. The core services
// depend only on these contracts; the concrete clients live under
// internal/adapters/driven.
package driven
