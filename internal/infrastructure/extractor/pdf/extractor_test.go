package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/scholarlab/research-assistant/internal/core/domain"
)

type storageFake struct {
	data map[string][]byte
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	f.data[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.data[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func TestExtractPlainTextDocument(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{
		"doc-1.txt": []byte("  plain text body  "),
	}}
	extractor := NewExtractor(storage)

	text, err := extractor.Extract(context.Background(), &domain.Document{
		StoragePath: "doc-1.txt",
		FileName:    "doc-1.txt",
		MimeType:    "text/plain",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "plain text body" {
		t.Fatalf("expected trimmed text, got %q", text)
	}
}

func TestExtractRejectsBinaryNonPDF(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{
		"doc-1.bin": {0xff, 0xfe, 0x00, 0x01},
	}}
	extractor := NewExtractor(storage)

	_, err := extractor.Extract(context.Background(), &domain.Document{
		StoragePath: "doc-1.bin",
		FileName:    "doc-1.bin",
		MimeType:    "application/octet-stream",
	})
	if err == nil {
		t.Fatalf("expected error for binary non-pdf")
	}
}

func TestExtractCorruptPDF(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{
		"doc-1.pdf": []byte("%PDF-1.4 truncated garbage"),
	}}
	extractor := NewExtractor(storage)

	_, err := extractor.Extract(context.Background(), &domain.Document{
		StoragePath: "doc-1.pdf",
		FileName:    "doc-1.pdf",
		MimeType:    "application/pdf",
	})
	if err == nil {
		t.Fatalf("expected error for corrupt pdf")
	}
}

func TestExtractMissingFile(t *testing.T) {
	extractor := NewExtractor(&storageFake{})
	_, err := extractor.Extract(context.Background(), &domain.Document{StoragePath: "nope"})
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
