// Package docindex is the temporal document index: versioned ingestion,
// temporally filtered similarity search and expiry lifecycle over a
// vectorstore.Index.
//
// Each logical document is identified by its source path. Re-ingesting a
// source with new content retires the previous latest version and inserts a
// new one with the next version number; identical content is detected by
// hash and skipped. The backing index has no transactions, so retirement
// and insertion are a delete followed by an insert. Readers may observe a
// source with no latest version between the two; a failure in that window
// is reported as ErrLatestless.
//
// The Service takes no per-source lock. Callers that need single-writer
// semantics per source serialize calls themselves (see ingest.KeyedMutex).
package docindex
