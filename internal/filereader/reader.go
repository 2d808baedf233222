// Package filereader loads documents from disk and decodes them to UTF-8
// text, detecting legacy encodings and rejecting binary content.
package filereader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

var (
	// ErrEmpty is returned for zero-length content or content that decodes
	// to whitespace only.
	ErrEmpty = errors.New("content is empty")

	// ErrBinary is returned for content that looks like a binary file.
	ErrBinary = errors.New("content is binary")

	// ErrTooLarge is returned when a file exceeds the configured size limit.
	ErrTooLarge = errors.New("file too large")
)

const (
	sniffLen = 8 << 10
	// maxReplacementRatio bounds the share of undecodable runes a fallback
	// encoding may produce and still be accepted.
	maxReplacementRatio = 0.01
)

// Reader reads and decodes text files.
type Reader struct {
	maxSize   int64
	fallbacks []string
}

// Option configures a Reader.
type Option func(*Reader)

// WithMaxSize limits file size in bytes. Zero disables the limit.
func WithMaxSize(n int64) Option {
	return func(r *Reader) { r.maxSize = n }
}

// WithFallbacks sets the encodings tried, in order, for content that is not
// valid UTF-8. Names are WHATWG labels such as "gb18030" or "shift_jis".
func WithFallbacks(names ...string) Option {
	return func(r *Reader) { r.fallbacks = names }
}

// New returns a Reader. Defaults: 32 MiB limit; GB18030 then Windows-1252
// fallbacks.
func New(opts ...Option) *Reader {
	r := &Reader{
		maxSize:   32 << 20,
		fallbacks: []string{"gb18030", "windows-1252"},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFile returns the raw bytes of path.
func (r *Reader) ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if r.maxSize > 0 && info.Size() > r.maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrTooLarge, path, info.Size(), r.maxSize)
	}

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return raw, nil
}

// Decode converts raw to UTF-8 text. Order of preference: a byte order mark,
// valid UTF-8, then each fallback encoding that decodes cleanly. If nothing
// fits, invalid bytes are dropped from a UTF-8 reading.
func (r *Reader) Decode(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmpty
	}

	text, err := r.decode(raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmpty
	}
	return text, nil
}

func (r *Reader) decode(raw []byte) (string, error) {
	if enc, name, certain := charset.DetermineEncoding(raw, "text/plain"); certain {
		// Only a BOM makes the sniffer certain for text/plain.
		text, err := decodeWith(enc, raw)
		if err != nil {
			return "", fmt.Errorf("decoding %s: %w", name, err)
		}
		return strings.TrimPrefix(text, "\ufeff"), nil
	}

	if looksBinary(raw) {
		return "", ErrBinary
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}

	for _, name := range r.fallbacks {
		enc, _ := charset.Lookup(name)
		if enc == nil {
			continue
		}
		text, err := decodeWith(enc, raw)
		if err == nil && cleanDecode(text) {
			return text, nil
		}
	}
	return strings.ToValidUTF8(string(raw), ""), nil
}

func decodeWith(enc encoding.Encoding, raw []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func cleanDecode(text string) bool {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return false
	}
	bad := strings.Count(text, string(utf8.RuneError))
	return float64(bad)/float64(total) <= maxReplacementRatio
}

// looksBinary reports NUL bytes in the leading window, which text encodings
// without a BOM never produce.
func looksBinary(raw []byte) bool {
	if len(raw) > sniffLen {
		raw = raw[:sniffLen]
	}
	return bytes.IndexByte(raw, 0) >= 0
}
