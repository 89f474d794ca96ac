package core

// streaming.go provides the byte-level front end of the line reader.
//
// These readers wrap io.Reader so that upload quirks are handled without
// buffering the whole stream:
//
//   - BOMSkippingReader: drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - StreamingUTF8Sanitizer: replaces invalid UTF-8 bytes with U+FFFD
//   - StreamingCountingReader: counts bytes and keeps an xxhash64 digest
//
// Use WrapForStreaming to apply all three in the correct order.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

// Read implements io.Reader. The first call peeks for the BOM.
func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		// A short peek leaves its error buffered for the Read below.
		if head, err := b.r.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// StreamingUTF8Sanitizer wraps an io.Reader and replaces each invalid UTF-8
// byte with U+FFFD on the fly. The replacement is three bytes, so output
// that does not fit the caller's buffer is held for the next Read.
type StreamingUTF8Sanitizer struct {
	r   io.Reader
	buf []byte // raw input; buf[:carry] is a rune split by the last Read
	dst []byte // backing array for sanitised output

	carry int
	out   []byte // sanitised bytes not yet handed out
	err   error
}

const sanitizerBufferSize = 32 * 1024

var replacementRune = []byte(string(utf8.RuneError))

// NewStreamingUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewStreamingUTF8Sanitizer(r io.Reader) *StreamingUTF8Sanitizer {
	return &StreamingUTF8Sanitizer{
		r:   r,
		buf: make([]byte, sanitizerBufferSize),
	}
}

// Read implements io.Reader. A read error is returned once all bytes read
// before it have been handed out.
func (s *StreamingUTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (s *StreamingUTF8Sanitizer) fill() {
	m, err := s.r.Read(s.buf[s.carry:])
	data := s.buf[:s.carry+m]
	s.carry = 0
	s.err = err

	// Safe to hand out buf directly: fill runs only once out is drained.
	if isAllASCII(data) {
		s.out = data
		return
	}
	s.out = s.sanitize(data, err != nil)
}

// sanitize appends data to dst with invalid bytes replaced. Unless atEOF,
// a truncated sequence at the end is moved to the front of buf.
func (s *StreamingUTF8Sanitizer) sanitize(data []byte, atEOF bool) []byte {
	out := s.dst[:0]
	for i := 0; i < len(data); {
		if data[i] < utf8.RuneSelf {
			out = append(out, data[i])
			i++
			continue
		}

		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			if !atEOF && !utf8.FullRune(data[i:]) {
				s.carry = copy(s.buf, data[i:])
				break
			}
			out = append(out, replacementRune...)
			i++
			continue
		}

		out = append(out, data[i:i+size]...)
		i += size
	}
	s.dst = out
	return out
}

// isAllASCII is the fast path: most NDJSON payloads are plain ASCII.
func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// StreamingCountingReader wraps an io.Reader to track bytes read and a
// running xxhash64 digest of the content.
type StreamingCountingReader struct {
	reader    io.Reader
	digest    *xxhash.Digest
	BytesRead int64
	Total     int64 // If known (0 if unknown)
}

// NewStreamingCountingReader creates a counting reader with optional total size.
func NewStreamingCountingReader(r io.Reader, total int64) *StreamingCountingReader {
	return &StreamingCountingReader{
		reader: r,
		digest: xxhash.New(),
		Total:  total,
	}
}

// Read implements io.Reader.
func (r *StreamingCountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.BytesRead += int64(n)
		r.digest.Write(p[:n])
	}
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *StreamingCountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead * 100 / r.Total)
}

// Checksum returns the hex xxhash64 of everything read so far.
func (r *StreamingCountingReader) Checksum() string {
	return fmt.Sprintf("%016x", r.digest.Sum64())
}

// WrapForStreaming wraps a reader with BOM skipping, UTF-8 sanitization,
// and byte counting.
//
// The order matters:
// 1. BOM must be stripped first (before any processing)
// 2. UTF-8 sanitization happens next
// 3. Counting wraps everything, so the digest covers what was decoded
func WrapForStreaming(r io.Reader, totalSize int64) *StreamingCountingReader {
	bomReader := NewBOMSkippingReader(r)
	sanitizedReader := NewStreamingUTF8Sanitizer(bomReader)
	return NewStreamingCountingReader(sanitizedReader, totalSize)
}
