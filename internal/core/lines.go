package core

import (
	"bufio"
	"bytes"
	"io"
)

// DefaultMaxLineSize bounds a single NDJSON line (1 MiB).
const DefaultMaxLineSize = 1 << 20

const readBufferSize = 64 * 1024

// LineReader yields the lines of a stream one at a time, numbered from 1.
// It is a single forward pass and never closes the underlying reader.
//
// A line ends at "\n", "\r\n" or a lone "\r". A line longer than the
// maximum line size is skipped up to its terminator in fixed memory and
// yielded with TooLong set and empty Text.
//
// Usage mirrors bufio.Scanner:
//
//	lr := NewLineReader(r, 0)
//	for lr.Next() {
//	    line := lr.Line()
//	}
//	if err := lr.Err(); err != nil {
//	    // *StreamReadError
//	}
type LineReader struct {
	r       *bufio.Reader
	max     int
	buf     []byte
	line    Line
	err     error
	done    bool
	afterCR bool // previous line ended in '\r'; a following '\n' belongs to it
}

// NewLineReader creates a LineReader. maxLineSize <= 0 selects
// DefaultMaxLineSize.
func NewLineReader(r io.Reader, maxLineSize int) *LineReader {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	return &LineReader{
		r:   bufio.NewReaderSize(r, readBufferSize),
		max: maxLineSize,
	}
}

// Next advances to the next line. It returns false at end of stream or on
// a read failure; Err distinguishes the two.
func (lr *LineReader) Next() bool {
	if lr.done {
		return false
	}

	lr.buf = lr.buf[:0]
	started := false
	tooLong := false

	for {
		if lr.r.Buffered() == 0 {
			if _, err := lr.r.Peek(1); err != nil {
				if err == io.EOF && started {
					break
				}
				lr.done = true
				if err != io.EOF {
					lr.err = &StreamReadError{Line: lr.line.Number, Err: err}
				}
				return false
			}
		}
		chunk, _ := lr.r.Peek(lr.r.Buffered())

		if lr.afterCR {
			lr.afterCR = false
			if chunk[0] == '\n' {
				_, _ = lr.r.Discard(1)
				continue
			}
		}
		started = true

		end := bytes.IndexAny(chunk, "\r\n")
		data := chunk
		if end >= 0 {
			data = chunk[:end]
		}
		if !tooLong {
			if len(lr.buf)+len(data) > lr.max {
				tooLong = true
				lr.buf = lr.buf[:0]
			} else {
				lr.buf = append(lr.buf, data...)
			}
		}

		if end < 0 {
			_, _ = lr.r.Discard(len(chunk))
			continue
		}
		lr.afterCR = chunk[end] == '\r'
		_, _ = lr.r.Discard(end + 1)
		break
	}

	lr.line = Line{Number: lr.line.Number + 1, Text: string(lr.buf), TooLong: tooLong}
	return true
}

// Line returns the current line. Valid only after Next returned true.
func (lr *LineReader) Line() Line {
	return lr.line
}

// Count returns the number of lines read so far.
func (lr *LineReader) Count() int {
	return lr.line.Number
}

// Err returns the *StreamReadError that stopped the reader, or nil at a
// clean end of stream.
func (lr *LineReader) Err() error {
	return lr.err
}
