package core

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrUnsupportedEncoding is returned for a content encoding the importer
// cannot decode.
var ErrUnsupportedEncoding = errors.New("unsupported content encoding")

// ErrCorruptBody is returned when a compressed body cannot be opened.
var ErrCorruptBody = errors.New("corrupt compressed body")

// DecodeContent wraps r so that it yields the decoded NDJSON bytes for the
// given Content-Encoding. The returned closer releases decoder resources
// only; it does not close r.
//
// Supported: "" and "identity", "gzip", "zstd", "lz4".
func DecodeContent(encoding string, r io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return io.NopCloser(r), nil

	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %w", ErrCorruptBody, err)
		}
		return zr, nil

	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorruptBody, err)
		}
		return zr.IOReadCloser(), nil

	case "lz4", "x-lz4":
		return io.NopCloser(lz4.NewReader(r)), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}
}

// EncodingFromPath guesses the content encoding from a file extension.
func EncodingFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return "gzip"
	case ".zst", ".zstd":
		return "zstd"
	case ".lz4":
		return "lz4"
	default:
		return ""
	}
}
