package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/manuscript-review/internal/models"
	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
)

// CreatedNote annotates the history entry written when a document is first stored.
const CreatedNote = "document uploaded"

const documentColumns = `id, title, authors, abstract, keywords, file_name, file_type, file_size, file_content,
       status, upload_date, last_modified, version, sync_needed, last_synced`

// DocumentRepository is the durable record store for documents and their
// status history. Multi-row mutations run in a single transaction.
type DocumentRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db, now: time.Now}
}

// timestamp returns the current time at the precision Postgres stores, so
// values read back compare equal to the ones written.
func (r *DocumentRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func storageFault(op string, err error) error {
	return appErrors.Derive(appErrors.ErrStorageFault, fmt.Errorf("%s: %w", op, err), "")
}

// Put inserts or replaces a document and returns its id. The first insert of an
// id also appends the initial history entry in the same transaction. A replace
// only lands when doc.Version is newer than the stored version; otherwise it
// fails with ErrConflict and nothing is written. On return doc reflects the
// stored status and timestamps.
func (r *DocumentRepository) Put(ctx context.Context, doc *models.Document) (id string, err error) {
	if doc == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "document is required")
	}
	if doc.ID == "" {
		generated, genErr := uuid.NewV7()
		if genErr != nil {
			generated = uuid.New()
		}
		doc.ID = generated.String()
	}
	now := r.timestamp()
	if doc.UploadDate.IsZero() {
		doc.UploadDate = now
	}
	doc.UploadDate = doc.UploadDate.UTC().Truncate(time.Microsecond)
	doc.LastModified = now
	if doc.LastModified.Before(doc.UploadDate) {
		doc.LastModified = doc.UploadDate
	}
	if doc.Version < 1 {
		doc.Version = 1
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusPending
	}
	if doc.FileType == "" {
		doc.FileType = models.FileTypeUnknown
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", storageFault("begin put transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// xmax is zero only for a freshly inserted row, which tells the insert and
	// replace paths apart without a separate existence check. A replace keeps
	// the stored status: only RecordStatusChange moves it, so the status always
	// matches the newest history entry. The version guard turns the replace
	// into a compare-and-swap, so a stale writer gets no row back.
	const upsertQuery = `INSERT INTO documents (` + documentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	authors = EXCLUDED.authors,
	abstract = EXCLUDED.abstract,
	keywords = EXCLUDED.keywords,
	file_name = EXCLUDED.file_name,
	file_type = EXCLUDED.file_type,
	file_size = EXCLUDED.file_size,
	file_content = EXCLUDED.file_content,
	last_modified = GREATEST(EXCLUDED.last_modified, documents.upload_date),
	version = EXCLUDED.version,
	sync_needed = EXCLUDED.sync_needed,
	last_synced = EXCLUDED.last_synced
WHERE documents.version < EXCLUDED.version
RETURNING (xmax = 0) AS inserted, status, upload_date, last_modified`

	var written struct {
		Inserted     bool                  `db:"inserted"`
		Status       models.DocumentStatus `db:"status"`
		UploadDate   time.Time             `db:"upload_date"`
		LastModified time.Time             `db:"last_modified"`
	}
	if err = tx.GetContext(ctx, &written, upsertQuery,
		doc.ID, doc.Title, doc.Authors, doc.Abstract, doc.Keywords,
		doc.FileName, doc.FileType, doc.FileSize, doc.FileContent,
		doc.Status, doc.UploadDate, doc.LastModified, doc.Version,
		doc.SyncNeeded, doc.LastSynced,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("document %s was modified concurrently, version %d is stale", doc.ID, doc.Version))
			return "", err
		}
		return "", storageFault("upsert document", err)
	}

	if written.Inserted {
		const historyQuery = `INSERT INTO status_history (document_id, status, recorded_at, notes) VALUES ($1, $2, $3, $4)`
		if _, err = tx.ExecContext(ctx, historyQuery, doc.ID, doc.Status, now, CreatedNote); err != nil {
			return "", storageFault("insert initial status history", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", storageFault("commit put transaction", err)
	}
	doc.Status = written.Status
	doc.UploadDate = written.UploadDate.UTC()
	doc.LastModified = written.LastModified.UTC()
	return doc.ID, nil
}

// GetByID fetches a document. A missing id yields nil without error.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageFault("get document", err)
	}
	return &doc, nil
}

// GetAll returns every document in unspecified order.
func (r *DocumentRepository) GetAll(ctx context.Context) ([]models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents`
	docs := make([]models.Document, 0)
	if err := r.db.SelectContext(ctx, &docs, query); err != nil {
		return nil, storageFault("list documents", err)
	}
	return docs, nil
}

// ListByStatus returns documents in the given status, most recently modified first.
func (r *DocumentRepository) ListByStatus(ctx context.Context, status models.DocumentStatus) ([]models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE status = $1 ORDER BY last_modified DESC`
	docs := make([]models.Document, 0)
	if err := r.db.SelectContext(ctx, &docs, query, status); err != nil {
		return nil, storageFault("list documents by status", err)
	}
	return docs, nil
}

// RecordStatusChange sets the document status and appends a history entry
// atomically. It does not check that the transition is legal, but when
// expected is set the stored status must still equal it once the row is
// locked; otherwise the change fails with ErrInvalidTransition.
func (r *DocumentRepository) RecordStatusChange(ctx context.Context, documentID string, expected, status models.DocumentStatus, notes string) (entry *models.StatusHistoryEntry, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageFault("begin status transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.DocumentStatus
	const lockQuery = `SELECT status FROM documents WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("document %s not found", documentID))
			return nil, err
		}
		return nil, storageFault("lock document", err)
	}
	if expected != "" && current != expected {
		err = appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("document %s moved to %s concurrently, expected %s", documentID, current, expected))
		return nil, err
	}

	now := r.timestamp()
	const updateQuery = `UPDATE documents SET status = $1, last_modified = GREATEST($2, upload_date), sync_needed = TRUE WHERE id = $3`
	if _, err = tx.ExecContext(ctx, updateQuery, status, now, documentID); err != nil {
		return nil, storageFault("update document status", err)
	}

	entry = &models.StatusHistoryEntry{
		DocumentID: documentID,
		Status:     status,
		Timestamp:  now,
	}
	if notes != "" {
		entry.Notes = &notes
	}
	const historyQuery = `INSERT INTO status_history (document_id, status, recorded_at, notes) VALUES ($1, $2, $3, $4) RETURNING id`
	if err = tx.GetContext(ctx, &entry.ID, historyQuery, documentID, status, now, entry.Notes); err != nil {
		return nil, storageFault("insert status history", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, storageFault("commit status transaction", err)
	}
	return entry, nil
}

// GetHistory returns the document's history, most recent first. Unknown ids
// yield an empty slice.
func (r *DocumentRepository) GetHistory(ctx context.Context, documentID string) ([]models.StatusHistoryEntry, error) {
	const query = `SELECT id, document_id, status, recorded_at, notes FROM status_history
WHERE document_id = $1 ORDER BY recorded_at DESC, id DESC`
	entries := make([]models.StatusHistoryEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, documentID); err != nil {
		return nil, storageFault("list status history", err)
	}
	return entries, nil
}

// Delete removes a document together with its history. Unknown ids are a no-op.
func (r *DocumentRepository) Delete(ctx context.Context, documentID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageFault("begin delete transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM status_history WHERE document_id = $1`, documentID); err != nil {
		return storageFault("delete status history", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, documentID); err != nil {
		return storageFault("delete document", err)
	}

	if err = tx.Commit(); err != nil {
		return storageFault("commit delete transaction", err)
	}
	return nil
}

// MarkSynced clears the sync flag and stamps last_synced, but only while the
// row still carries the last_modified value the caller read. It reports false
// when the document changed or disappeared in between.
func (r *DocumentRepository) MarkSynced(ctx context.Context, documentID string, seenLastModified, syncedAt time.Time) (bool, error) {
	syncedAt = syncedAt.UTC().Truncate(time.Microsecond)
	const query = `UPDATE documents
SET sync_needed = FALSE, last_synced = $1, last_modified = GREATEST($1, last_modified)
WHERE id = $2 AND last_modified = $3`
	result, err := r.db.ExecContext(ctx, query, syncedAt, documentID, seenLastModified)
	if err != nil {
		return false, storageFault("mark document synced", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, storageFault("check mark synced rows", err)
	}
	return rows > 0, nil
}
