// Package vectorstore stores chunk records with their embeddings and answers
// nearest-neighbour queries restricted by a filter.
//
// Two backends implement Index: ChromemIndex keeps the collection in process
// (optionally persisted to disk) and QdrantIndex talks to a Qdrant server
// over gRPC. Filters are a small expression tree (see Filter) that each
// backend evaluates natively or translates to its own query language.
//
// An Index is bound to a single collection. Backends have no transactions:
// callers that need replace semantics delete first and insert afterwards.
package vectorstore
