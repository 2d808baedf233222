// Package events publishes document lifecycle events.
//
// Events are notifications, not a source of truth: publishing is best-effort
// and callers log failures instead of failing the operation that caused them.
package events

import (
	"context"
	"errors"
	"time"
)

// Type names a lifecycle event. It is also the subject suffix.
type Type string

const (
	DocumentCreated Type = "document.created"
	DocumentUpdated Type = "document.updated"
	DocumentExpired Type = "document.expired"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher closed")

// Event is the JSON body of every message.
type Event struct {
	Type       Type   `json:"type"`
	Source     string `json:"source,omitempty"`
	DocID      string `json:"doc_id,omitempty"`
	Version    int    `json:"version,omitempty"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	// Removed is the number of chunks deleted by an expiry sweep.
	Removed int `json:"removed,omitempty"`
	// At is Unix milliseconds.
	At int64 `json:"at"`
}

// NewEvent stamps an event of type t at now.
func NewEvent(t Type, now time.Time) Event {
	return Event{Type: t, At: now.UnixMilli()}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type nopPublisher struct{}

// Nop returns a Publisher that discards everything.
func Nop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                         { return nil }
