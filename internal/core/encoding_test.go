package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

func compress(t *testing.T, encoding, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser

	switch encoding {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "zstd":
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("zstd writer: %v", err)
		}
		w = zw
	case "lz4":
		w = lz4.NewWriter(&buf)
	default:
		return []byte(data)
	}

	if _, err := io.WriteString(w, data); err != nil {
		t.Fatalf("%s write: %v", encoding, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("%s close: %v", encoding, err)
	}
	return buf.Bytes()
}

func TestDecodeContent(t *testing.T) {
	data := ndjson(payloadLine("A", 1), payloadLine("B", 2))

	for _, encoding := range []string{"", "identity", "gzip", "zstd", "lz4"} {
		t.Run("encoding "+encoding, func(t *testing.T) {
			body := compress(t, encoding, data)

			rc, err := DecodeContent(encoding, bytes.NewReader(body))
			if err != nil {
				t.Fatalf("DecodeContent: %v", err)
			}
			defer rc.Close()

			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != data {
				t.Errorf("got %q, want %q", got, data)
			}
		})
	}
}

func TestDecodeContent_CaseInsensitive(t *testing.T) {
	body := compress(t, "gzip", "x\n")
	rc, err := DecodeContent(" GZIP ", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("DecodeContent: %v", err)
	}
	rc.Close()
}

func TestDecodeContent_Errors(t *testing.T) {
	t.Run("unsupported encoding", func(t *testing.T) {
		_, err := DecodeContent("br", strings.NewReader("x"))
		if !errors.Is(err, ErrUnsupportedEncoding) {
			t.Errorf("expected ErrUnsupportedEncoding, got %v", err)
		}
	})

	t.Run("corrupt gzip", func(t *testing.T) {
		_, err := DecodeContent("gzip", strings.NewReader("definitely not gzip"))
		if !errors.Is(err, ErrCorruptBody) {
			t.Errorf("expected ErrCorruptBody, got %v", err)
		}
	})
}

func TestEncodingFromPath(t *testing.T) {
	tests := map[string]string{
		"export.ndjson":     "",
		"export.ndjson.gz":  "gzip",
		"export.NDJSON.GZ":  "gzip",
		"export.jsonl.zst":  "zstd",
		"export.ndjson.lz4": "lz4",
		"-":                 "",
	}
	for path, want := range tests {
		if got := EncodingFromPath(path); got != want {
			t.Errorf("EncodingFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}
