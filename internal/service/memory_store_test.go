package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/manuscript-review/internal/models"
	"github.com/noah-isme/manuscript-review/internal/repository"
	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
)

// memoryStore mirrors the record store contract in memory.
type memoryStore struct {
	mu      sync.Mutex
	docs    map[string]models.Document
	history map[string][]models.StatusHistoryEntry
	nextID  int64
	clock   time.Time

	getAllErr  error
	putErr     error
	markErr    error
	historyErr error
	getAllHits int

	// beforePut runs ahead of every Put, outside the lock, so tests can slip
	// in a competing write.
	beforePut func(doc *models.Document)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		docs:    make(map[string]models.Document),
		history: make(map[string][]models.StatusHistoryEntry),
		clock:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

// tick advances the clock so successive writes get distinct timestamps.
func (s *memoryStore) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *memoryStore) Put(ctx context.Context, doc *models.Document) (string, error) {
	if hook := s.beforePut; hook != nil {
		hook(doc)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return "", s.putErr
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Version < 1 {
		doc.Version = 1
	}
	existing, exists := s.docs[doc.ID]
	if exists && doc.Version <= existing.Version {
		return "", appErrors.Clone(appErrors.ErrConflict, "document "+doc.ID+" was modified concurrently")
	}
	now := s.tick()
	if exists {
		doc.Status = existing.Status
		doc.UploadDate = existing.UploadDate
	} else {
		if doc.UploadDate.IsZero() {
			doc.UploadDate = now
		}
		if doc.Status == "" {
			doc.Status = models.DocumentStatusPending
		}
	}
	doc.LastModified = now
	s.docs[doc.ID] = cloneDocument(*doc)
	if !exists {
		note := repository.CreatedNote
		s.appendHistory(doc.ID, doc.Status, now, &note)
	}
	return doc.ID, nil
}

func (s *memoryStore) GetByID(ctx context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	out := cloneDocument(doc)
	return &out, nil
}

func (s *memoryStore) GetAll(ctx context.Context) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getAllHits++
	if s.getAllErr != nil {
		return nil, s.getAllErr
	}
	out := make([]models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, cloneDocument(doc))
	}
	return out, nil
}

func (s *memoryStore) ListByStatus(ctx context.Context, status models.DocumentStatus) ([]models.Document, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Document, 0, len(all))
	for _, doc := range all {
		if doc.Status == status {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *memoryStore) RecordStatusChange(ctx context.Context, id string, expected, status models.DocumentStatus, notes string) (*models.StatusHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document "+id+" not found")
	}
	if expected != "" && doc.Status != expected {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "document "+id+" moved to "+string(doc.Status)+" concurrently")
	}
	now := s.tick()
	doc.Status = status
	doc.LastModified = now
	doc.MarkSyncNeeded()
	s.docs[id] = doc
	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}
	entry := s.appendHistory(id, status, now, notesPtr)
	return &entry, nil
}

func (s *memoryStore) appendHistory(id string, status models.DocumentStatus, at time.Time, notes *string) models.StatusHistoryEntry {
	s.nextID++
	entry := models.StatusHistoryEntry{ID: s.nextID, DocumentID: id, Status: status, Timestamp: at, Notes: notes}
	s.history[id] = append(s.history[id], entry)
	return entry
}

func (s *memoryStore) GetHistory(ctx context.Context, id string) ([]models.StatusHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	entries := s.history[id]
	out := make([]models.StatusHistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, id)
	delete(s.docs, id)
	return nil
}

func (s *memoryStore) MarkSynced(ctx context.Context, id string, seenLastModified, syncedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return false, s.markErr
	}
	doc, ok := s.docs[id]
	if !ok || !doc.LastModified.Equal(seenLastModified) {
		return false, nil
	}
	synced := false
	doc.SyncNeeded = &synced
	doc.LastSynced = &syncedAt
	s.docs[id] = doc
	return true, nil
}

// seed stores doc as is, bypassing Put defaults and history.
func (s *memoryStore) seed(doc models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = cloneDocument(doc)
}

func (s *memoryStore) historyLen(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history[id])
}

func cloneDocument(doc models.Document) models.Document {
	out := doc
	out.Authors = append([]string(nil), doc.Authors...)
	out.Keywords = append([]string(nil), doc.Keywords...)
	if doc.SyncNeeded != nil {
		flag := *doc.SyncNeeded
		out.SyncNeeded = &flag
	}
	if doc.LastSynced != nil {
		at := *doc.LastSynced
		out.LastSynced = &at
	}
	return out
}

func boolPtr(v bool) *bool {
	return &v
}
