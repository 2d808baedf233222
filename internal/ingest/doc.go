// Package ingest feeds documents into a docindex from directories, watched
// directories and git repositories.
//
// Every file becomes one logical document whose source is its path. A file
// may carry a sidecar "<name>.meta.yaml" with metadata and an expiry:
//
//	expiry_days: 30
//	metadata:
//	  category: tax
//	  tags: [notice, 2024]
//
// Writes to one source are serialized through a KeyedMutex so concurrent
// ingestions of the same file never interleave retirement and insertion.
package ingest
