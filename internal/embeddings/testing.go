package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// FakeProvider is a deterministic bag-of-words embedder for tests. Texts that
// share words get similar vectors.
type FakeProvider struct {
	dim int

	mu        sync.Mutex
	failOn    string
	docCalls  int
	queryCall int
}

// NewFakeProvider returns a FakeProvider producing dim-length unit vectors.
func NewFakeProvider(dim int) *FakeProvider {
	if dim <= 0 {
		dim = 64
	}
	return &FakeProvider{dim: dim}
}

// FailOn makes every call whose input contains substr fail.
func (f *FakeProvider) FailOn(substr string) {
	f.mu.Lock()
	f.failOn = substr
	f.mu.Unlock()
}

// Calls returns the number of EmbedDocuments and EmbedQuery calls made.
func (f *FakeProvider) Calls() (docs, queries int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docCalls, f.queryCall
}

func (f *FakeProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.docCalls++
	fail := f.failOn
	f.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if fail != "" && strings.Contains(t, fail) {
			return nil, fmt.Errorf("%w: fake failure", ErrEmbeddingFailed)
		}
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *FakeProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.queryCall++
	fail := f.failOn
	f.mu.Unlock()
	if fail != "" && strings.Contains(text, fail) {
		return nil, fmt.Errorf("%w: fake failure", ErrEmbeddingFailed)
	}
	return f.vector(text), nil
}

func (f *FakeProvider) Dimension() int { return f.dim }

func (f *FakeProvider) Close() error { return nil }

func (f *FakeProvider) vector(text string) []float32 {
	vec := make([]float32, f.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(f.dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
