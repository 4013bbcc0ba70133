package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scholarlab/research-assistant/internal/core/domain"
	"github.com/scholarlab/research-assistant/internal/core/ports"
)

// IngestUseCase accepts an uploaded document: it stores the raw bytes,
// records the metadata, and enqueues asynchronous indexing. Upload returns
// as soon as the document is durable; indexing happens in the worker.
type IngestUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestUseCase {
	return &IngestUseCase{repo: repo, storage: storage, queue: queue}
}

func (u *IngestUseCase) Upload(
	ctx context.Context,
	title, filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	filename = sanitizeFilename(filename)
	if filename == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("filename is empty"))
	}
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        uuid.NewString(),
		Title:     title,
		FileName:  filename,
		MimeType:  mimeType,
		Status:    domain.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc.StoragePath = doc.ID + filepath.Ext(filename)

	if err := u.storage.Save(ctx, doc.StoragePath, body); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "upload", fmt.Errorf("store document: %w", err))
	}
	if err := u.repo.Create(ctx, doc); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "upload", fmt.Errorf("create document record: %w", err))
	}

	if err := u.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		// The record is durable; the queue hiccup only delays indexing.
		slog.Error("publish_document_ingested_failed", "document_id", doc.ID, "error", err)
	}
	return doc, nil
}

// sanitizeFilename keeps the base name and strips characters that have no
// business in a storage key.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._")
}
