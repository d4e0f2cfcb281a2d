// Package driving provides interfaces for the use cases the core exposes
// to callers (primary/inbound ports): ingestion, retrieval and the batch
// ablation runner. The CLI adapter drives the engine through these.
package driving
