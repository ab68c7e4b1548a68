// Package model defines the core data types for the acquisition pipeline.
//
// The types in this package are intentionally free of behavior beyond
// construction, normalization, and hashing. Components communicate by
// exchanging these values; no model type performs I/O.
//
// The central types are:
//
//   - Target: a URI to fetch plus its discovery metadata
//   - Identity: one egress configuration (proxy + header bundle)
//   - Attempt: one execution of a Target against one Identity
//   - Outcome: the classified result of an Attempt
//   - Artifact: a successfully fetched, content-addressed unit of evidence
//   - AuditRecord: the flattened per-attempt projection written to the
//     audit trail
package model
