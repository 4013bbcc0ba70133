package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/scholarlab/research-assistant/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func documentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "file_name", "mime_type", "storage_path", "authors",
		"year", "summary", "page_count", "status", "error_message", "created_at", "updated_at",
	})
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, title, file_name").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, title, file_name").
		WithArgs("doc-1").
		WillReturnRows(documentRows().AddRow(
			"doc-1", "Tau Pathology", "tau.pdf", "application/pdf", "doc-1.pdf",
			[]byte(`["Doe J","Ray A"]`), 2025, "summary text", 12, "ready", "", now, now,
		))

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Title != "Tau Pathology" || doc.Status != domain.StatusReady {
		t.Fatalf("unexpected document %+v", doc)
	}
	if len(doc.Authors) != 2 || doc.Authors[0] != "Doe J" {
		t.Fatalf("expected authors decoded, got %v", doc.Authors)
	}
	if doc.PageCount != 12 {
		t.Fatalf("expected page count 12, got %d", doc.PageCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDsGeneratesPlaceholders(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, title, file_name.+WHERE id IN \(\$1,\$2\)`).
		WithArgs("a", "b").
		WillReturnRows(documentRows().AddRow(
			"a", "Paper A", "a.pdf", "application/pdf", "a.pdf",
			[]byte(`[]`), 0, "", 0, "ready", "", now, now,
		))

	docs, err := repo.GetByIDs(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(docs) != 1 || docs["a"] == nil {
		t.Fatalf("expected map with doc a, got %v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDsEmptyInput(t *testing.T) {
	repo, _, done := newRepoWithMock(t)
	defer done()

	docs, err := repo.GetByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected empty map, got %v", docs)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs(string(domain.StatusIndexing), "", sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusIndexing, "")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveIndexingResultUpdatesRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents SET summary").
		WithArgs("two sentences", 7, sqlmock.AnyArg(), "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveIndexingResult(context.Background(), "doc-1", "two sentences", 7); err != nil {
		t.Fatalf("SaveIndexingResult() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateChunksReplacesExisting(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM document_chunks").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs("doc-1", 0, "", "first", "v1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs("doc-1", 1, "", "second", "v2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CreateChunks(context.Background(), []domain.DocumentChunk{
		{DocumentID: "doc-1", ChunkIndex: 0, Text: "first", VectorID: "v1"},
		{DocumentID: "doc-1", ChunkIndex: 1, Text: "second", VectorID: "v2"},
	})
	if err != nil {
		t.Fatalf("CreateChunks() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListChunksByDocumentIDsWithoutFilter(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT document_id, chunk_index, section, chunk_text, vector_id FROM document_chunks ORDER BY").
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "chunk_index", "section", "chunk_text", "vector_id"}).
			AddRow("doc-1", 0, "intro", "text", "v1"))

	chunks, err := repo.ListChunksByDocumentIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListChunksByDocumentIDs() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].Section != "intro" {
		t.Fatalf("unexpected chunks %v", chunks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
