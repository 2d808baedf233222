// Package chunking splits document text into overlapping chunks for
// embedding.
package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 500

	// DefaultChunkOverlap is the number of characters shared by neighbours.
	DefaultChunkOverlap = 50
)

// DefaultSeparators prefer paragraph and sentence boundaries (including CJK
// full-width punctuation) over spaces, and spaces over hard cuts.
var DefaultSeparators = []string{"\n\n", "\n", "。", "！", "？", "；", " ", ""}

// Splitter turns a document into an ordered list of chunk texts.
type Splitter interface {
	Split(text string) ([]string, error)
}

// Recursive is a Splitter backed by langchaingo's recursive character
// splitter. Lengths are counted in runes.
type Recursive struct {
	size       int
	overlap    int
	separators []string
	splitter   textsplitter.RecursiveCharacter
}

// Option configures a Recursive splitter.
type Option func(*Recursive)

// WithChunkSize sets the target chunk length. Non-positive values are ignored.
func WithChunkSize(n int) Option {
	return func(r *Recursive) {
		if n > 0 {
			r.size = n
		}
	}
}

// WithOverlap sets the overlap between neighbouring chunks.
func WithOverlap(n int) Option {
	return func(r *Recursive) {
		if n >= 0 {
			r.overlap = n
		}
	}
}

// WithSeparators replaces the separator list. An empty list is ignored.
func WithSeparators(seps []string) Option {
	return func(r *Recursive) {
		if len(seps) > 0 {
			r.separators = append([]string(nil), seps...)
		}
	}
}

// New returns a Recursive splitter. Overlap is clamped below the chunk size.
func New(opts ...Option) *Recursive {
	r := &Recursive{
		size:       DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.overlap >= r.size {
		r.overlap = r.size / 10
	}
	r.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(r.size),
		textsplitter.WithChunkOverlap(r.overlap),
		textsplitter.WithSeparators(r.separators),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	return r
}

// Size returns the configured chunk size.
func (r *Recursive) Size() int { return r.size }

// Overlap returns the configured overlap.
func (r *Recursive) Overlap() int { return r.overlap }

// Split returns the non-blank chunks of text in document order.
func (r *Recursive) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	parts, err := r.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("splitting text: %w", err)
	}
	chunks := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks, nil
}
