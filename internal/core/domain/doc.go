// Package domain contains the core types of the retrieval and indexing
// engine: text nodes, experiment configurations with their ingestion
// fingerprints, ablation grids, evaluation records and the standard
// information-retrieval metrics computed over them.
//
// Types in this package have no dependencies on adapters or services.
// They are plain values; anything that talks to the network or the
// filesystem lives behind the ports in internal/core/ports.
package domain
