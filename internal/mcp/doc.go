// Package mcp exposes the document index as MCP tools over stdio.
//
// Tools:
//   - document_ingest: add or update one document from inline content
//   - document_ingest_directory: ingest a directory tree (when enabled)
//   - document_search: semantic search with version, time and expiry filters
//   - document_cleanup_expired: delete expired chunks
//   - document_stats: chunk counts
package mcp
