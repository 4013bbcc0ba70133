package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	pdfreader "github.com/ledongthuc/pdf"

	"github.com/scholarlab/research-assistant/internal/core/domain"
	"github.com/scholarlab/research-assistant/internal/core/ports"
)

// Extractor pulls plain text out of stored documents. PDF bodies go through
// the pdf reader; anything else is accepted as-is when it is valid UTF-8
// text.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	if isPDF(doc.MimeType, raw) {
		return extractPDF(raw, doc.FileName)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("unsupported binary format: %s", doc.FileName)
	}
	return strings.TrimSpace(string(raw)), nil
}

func extractPDF(raw []byte, fileName string) (string, error) {
	r, err := pdfreader.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", fileName, err)
	}

	textReader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text from %s: %w", fileName, err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, textReader); err != nil {
		return "", fmt.Errorf("read pdf text from %s: %w", fileName, err)
	}
	return strings.TrimSpace(b.String()), nil
}

func isPDF(mimeType string, raw []byte) bool {
	if strings.EqualFold(mimeType, "application/pdf") {
		return true
	}
	return bytes.HasPrefix(raw, []byte("%PDF-"))
}
