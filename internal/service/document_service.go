package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/manuscript-review/internal/dto"
	"github.com/noah-isme/manuscript-review/internal/models"
	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
	"github.com/noah-isme/manuscript-review/pkg/export"
)

const (
	// DefaultAuthor is recorded when an upload names no authors.
	DefaultAuthor = "Author pending"
	// InitialStatusNote annotates history repaired by EnsureInitialStatus.
	InitialStatusNote = "initial status"

	summaryHistoryLimit = 3
	// updateAttempts bounds how often a metadata patch is reapplied after
	// losing a version race.
	updateAttempts = 3
)

type documentStore interface {
	Put(ctx context.Context, doc *models.Document) (string, error)
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetAll(ctx context.Context) ([]models.Document, error)
	ListByStatus(ctx context.Context, status models.DocumentStatus) ([]models.Document, error)
	RecordStatusChange(ctx context.Context, id string, expected, status models.DocumentStatus, notes string) (*models.StatusHistoryEntry, error)
	GetHistory(ctx context.Context, id string) ([]models.StatusHistoryEntry, error)
	Delete(ctx context.Context, id string) error
}

type uploadValidator interface {
	ValidateFile(file dto.FileUpload) models.FileValidation
	ValidateMetadata(meta dto.DocumentMetadata) error
	ValidateUpdate(req dto.UpdateDocumentRequest) error
}

// DocumentService is the application surface over the record store. Every
// status change passes the workflow gate before it reaches storage.
type DocumentService struct {
	store     documentStore
	workflow  *StatusWorkflow
	validator uploadValidator
	cache     *CacheService
	exporter  *HistoryExportService
	metrics   *MetricsService
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// DocumentServiceConfig carries the optional collaborators of DocumentService.
type DocumentServiceConfig struct {
	Cache    *CacheService
	CacheTTL time.Duration
	Exporter *HistoryExportService
	Metrics  *MetricsService
	Logger   *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(store documentStore, workflow *StatusWorkflow, validator uploadValidator, cfg DocumentServiceConfig) *DocumentService {
	if workflow == nil {
		workflow = NewStatusWorkflow()
	}
	if validator == nil {
		validator = NewValidationService(nil, 0, nil)
	}
	if cfg.Exporter == nil {
		cfg.Exporter = NewHistoryExportService(workflow, nil, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &DocumentService{
		store:     store,
		workflow:  workflow,
		validator: validator,
		cache:     cfg.Cache,
		exporter:  cfg.Exporter,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		cacheTTL:  cfg.CacheTTL,
	}
}

// Workflow exposes the state machine used by the service.
func (s *DocumentService) Workflow() *StatusWorkflow {
	return s.workflow
}

// Upload validates and stores a new document in the initial status.
func (s *DocumentService) Upload(ctx context.Context, meta dto.DocumentMetadata, file dto.FileUpload) (*models.Document, error) {
	verdict := s.validator.ValidateFile(file)
	if !verdict.Valid {
		return nil, appErrors.Clone(appErrors.ErrValidation, strings.Join(verdict.Errors, ". "))
	}

	meta.Title = strings.TrimSpace(meta.Title)
	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(file.Name, path.Ext(file.Name))
	}
	if len(meta.Authors) == 0 {
		meta.Authors = []string{DefaultAuthor}
	}
	if err := s.validator.ValidateMetadata(meta); err != nil {
		return nil, err
	}

	doc := &models.Document{
		Title:       meta.Title,
		Authors:     meta.Authors,
		Abstract:    meta.Abstract,
		Keywords:    nonNilStrings(meta.Keywords),
		FileName:    file.Name,
		FileType:    verdict.FileType,
		FileSize:    verdict.FileSize,
		FileContent: dataURL(verdict.MIMEType, file.Content),
		Status:      models.DocumentStatusPending,
		Version:     1,
	}
	doc.MarkSyncNeeded()

	if _, err := s.store.Put(ctx, doc); err != nil {
		return nil, err
	}
	s.invalidateSummaries(ctx)
	s.logger.Info("document uploaded", zap.String("document_id", doc.ID), zap.String("file_type", string(doc.FileType)), zap.Int64("file_size", doc.FileSize))
	return doc, nil
}

// Get returns one document.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, notFound(id)
	}
	return doc, nil
}

// List returns documents, optionally filtered by status, most recently
// modified first. File content is omitted.
func (s *DocumentService) List(ctx context.Context, query dto.DocumentQuery) ([]models.Document, error) {
	var (
		docs []models.Document
		err  error
	)
	if query.Status != "" {
		if !s.workflow.IsKnown(query.Status) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", query.Status))
		}
		docs, err = s.store.ListByStatus(ctx, query.Status)
	} else {
		docs, err = s.store.GetAll(ctx)
	}
	if err != nil {
		return nil, err
	}
	sortByLastModified(docs)
	for i := range docs {
		docs[i].FileContent = ""
	}
	return docs, nil
}

// UpdateMetadata applies a metadata patch, bumps the version and flags the
// document for reconciliation. Status is not touched. A patch that loses a
// version race is reapplied to the fresh copy; after updateAttempts losses the
// conflict is returned.
func (s *DocumentService) UpdateMetadata(ctx context.Context, id string, req dto.UpdateDocumentRequest) (*models.Document, error) {
	if err := s.validator.ValidateUpdate(req); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < updateAttempts; attempt++ {
		doc, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		applyMetadataPatch(doc, req)
		doc.Version++
		doc.MarkSyncNeeded()

		if _, err := s.store.Put(ctx, doc); err != nil {
			if errors.Is(err, appErrors.ErrConflict) {
				lastErr = err
				s.logger.Debug("metadata update lost a version race, retrying",
					zap.String("document_id", id),
					zap.Int("attempt", attempt+1),
				)
				continue
			}
			return nil, err
		}
		s.invalidateSummaries(ctx)
		return doc, nil
	}
	return nil, lastErr
}

func applyMetadataPatch(doc *models.Document, req dto.UpdateDocumentRequest) {
	if req.Title != nil {
		doc.Title = strings.TrimSpace(*req.Title)
	}
	if req.Authors != nil {
		doc.Authors = req.Authors
	}
	if req.Abstract != nil {
		doc.Abstract = *req.Abstract
	}
	if req.Keywords != nil {
		doc.Keywords = req.Keywords
	}
}

// ChangeStatus moves a document along the workflow and records the change.
func (s *DocumentService) ChangeStatus(ctx context.Context, id string, status models.DocumentStatus, notes string) (*dto.StatusChangeResult, error) {
	if !s.workflow.IsKnown(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.workflow.ApplyTransition(doc.Status, status); err != nil {
		return nil, err
	}

	// The store re-checks doc.Status under a row lock, so a concurrent change
	// that won the race fails this one instead of skipping the workflow gate.
	entry, err := s.store.RecordStatusChange(ctx, id, doc.Status, status, strings.TrimSpace(notes))
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(doc.Status, status)
	s.invalidateSummaries(ctx)
	s.logger.Info("document status changed",
		zap.String("document_id", id),
		zap.String("from", string(doc.Status)),
		zap.String("to", string(status)),
	)
	return &dto.StatusChangeResult{
		DocumentID:     id,
		PreviousStatus: doc.Status,
		NewStatus:      status,
		Timestamp:      entry.Timestamp,
		Entry:          *entry,
	}, nil
}

// GetStatus returns the status view of one document. A document without
// history gets its initial entry recorded first.
func (s *DocumentService) GetStatus(ctx context.Context, id string) (*dto.StatusDetail, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.store.GetHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		if _, err := s.EnsureInitialStatus(ctx, id); err != nil {
			return nil, err
		}
		if doc, err = s.Get(ctx, id); err != nil {
			return nil, err
		}
		if history, err = s.store.GetHistory(ctx, id); err != nil {
			return nil, err
		}
	}
	return &dto.StatusDetail{
		DocumentID:       doc.ID,
		CurrentStatus:    doc.Status,
		LastUpdated:      doc.LastModified,
		History:          history,
		ValidTransitions: s.workflow.ValidTransitions(doc.Status),
		Display:          s.workflow.DisplayInfo(doc.Status),
	}, nil
}

// History returns a document's history, most recent first.
func (s *DocumentService) History(ctx context.Context, id string) ([]models.StatusHistoryEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetHistory(ctx, id)
}

// ListStatuses returns the status overview of every document, most recently
// modified first. The result is cached until the next write or sync pass.
func (s *DocumentService) ListStatuses(ctx context.Context) ([]dto.StatusSummary, error) {
	var cached []dto.StatusSummary
	if hit, _ := s.cache.Get(ctx, StatusSummaryCacheKey, &cached); hit {
		return cached, nil
	}

	docs, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	sortByLastModified(docs)

	summaries := make([]dto.StatusSummary, 0, len(docs))
	for _, doc := range docs {
		history, err := s.store.GetHistory(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		recent := history
		if len(recent) > summaryHistoryLimit {
			recent = recent[:summaryHistoryLimit]
		}
		summaries = append(summaries, dto.StatusSummary{
			DocumentID:    doc.ID,
			Title:         doc.Title,
			FileName:      doc.FileName,
			CurrentStatus: doc.Status,
			Display:       s.workflow.DisplayInfo(doc.Status),
			UploadDate:    doc.UploadDate,
			LastModified:  doc.LastModified,
			SyncNeeded:    doc.NeedsSync(),
			History:       recent,
			HistoryCount:  len(history),
		})
	}

	_ = s.cache.Set(ctx, StatusSummaryCacheKey, summaries, s.cacheTTL)
	return summaries, nil
}

// EnsureInitialStatus records the current status of a document that has no
// history yet. It reports whether an entry was written.
func (s *DocumentService) EnsureInitialStatus(ctx context.Context, id string) (bool, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	history, err := s.store.GetHistory(ctx, id)
	if err != nil {
		return false, err
	}
	if len(history) > 0 {
		return false, nil
	}
	status := doc.Status
	if !s.workflow.IsKnown(status) {
		status = models.DocumentStatusPending
	}
	if _, err := s.store.RecordStatusChange(ctx, id, doc.Status, status, InitialStatusNote); err != nil {
		return false, err
	}
	s.invalidateSummaries(ctx)
	return true, nil
}

// Delete removes a document and its history.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateSummaries(ctx)
	s.logger.Info("document deleted", zap.String("document_id", id))
	return nil
}

// ExportHistory renders the status history of a document as CSV or PDF.
func (s *DocumentService) ExportHistory(ctx context.Context, id, format string) (*dto.HistoryExport, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.store.GetHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.exporter.Render(doc, history, parsed)
}

// WatchSyncEvents drops the cached overview whenever a sync pass finishes,
// since reconciliation changes the sync flags it shows.
func (s *DocumentService) WatchSyncEvents(bus *NotificationBus) Subscription {
	return bus.Subscribe(func(event models.SyncEvent) {
		switch event.Type {
		case models.SyncEventComplete, models.SyncEventError:
			s.invalidateSummaries(context.Background())
		}
	})
}

func (s *DocumentService) invalidateSummaries(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, StatusSummaryCacheKey)
}

func notFound(id string) error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("document %s not found", id))
}

func sortByLastModified(docs []models.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].LastModified.Equal(docs[j].LastModified) {
			return docs[i].LastModified.After(docs[j].LastModified)
		}
		return docs[i].ID < docs[j].ID
	})
}

func dataURL(mimeType string, content []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(content)
}
