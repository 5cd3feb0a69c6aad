package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noah-isme/manuscript-review/internal/models"
	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
)

// HTTPAuthority reconciles documents with a remote REST endpoint using an
// idempotent PUT per document.
type HTTPAuthority struct {
	baseURL string
	client  *http.Client
	metrics *MetricsService
}

// NewHTTPAuthority constructs an authority rooted at baseURL.
func NewHTTPAuthority(baseURL string, timeout time.Duration, metrics *MetricsService) *HTTPAuthority {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPAuthority{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		metrics: metrics,
	}
}

// remoteDocument is the wire form sent to the authority. File content stays local.
type remoteDocument struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Authors      []string              `json:"authors"`
	Abstract     string                `json:"abstract"`
	Keywords     []string              `json:"keywords"`
	FileName     string                `json:"fileName"`
	FileType     models.FileType       `json:"fileType"`
	FileSize     int64                 `json:"fileSize"`
	Status       models.DocumentStatus `json:"status"`
	UploadDate   time.Time             `json:"uploadDate"`
	LastModified time.Time             `json:"lastModified"`
	Version      int                   `json:"version"`
}

// Reconcile sends the document. Transport failures and non-2xx replies are
// reported as reconciliation failures.
func (a *HTTPAuthority) Reconcile(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return appErrors.Clone(appErrors.ErrValidation, "document is required")
	}
	if a.baseURL == "" {
		return appErrors.Clone(appErrors.ErrReconciliation, "remote authority URL not configured")
	}

	payload, err := json.Marshal(remoteDocument{
		ID:           doc.ID,
		Title:        doc.Title,
		Authors:      nonNilStrings(doc.Authors),
		Abstract:     doc.Abstract,
		Keywords:     nonNilStrings(doc.Keywords),
		FileName:     doc.FileName,
		FileType:     doc.FileType,
		FileSize:     doc.FileSize,
		Status:       doc.Status,
		UploadDate:   doc.UploadDate,
		LastModified: doc.LastModified,
		Version:      doc.Version,
	})
	if err != nil {
		return appErrors.Derive(appErrors.ErrReconciliation, err, "encode document")
	}

	endpoint := a.baseURL + "/documents/" + url.PathEscape(doc.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return appErrors.Derive(appErrors.ErrReconciliation, err, "")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", fmt.Sprintf("%s:%d", doc.ID, doc.Version))

	start := time.Now()
	resp, err := a.client.Do(req)
	statusCode := http.StatusServiceUnavailable
	if resp != nil {
		statusCode = resp.StatusCode
	}
	a.metrics.ObserveHTTPRequest(http.MethodPut, "remote_reconcile", statusCode, time.Since(start))
	if err != nil {
		return appErrors.Derive(appErrors.ErrReconciliation, err, "")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		cause := fmt.Errorf("remote returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return appErrors.Derive(appErrors.ErrReconciliation, cause, "")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
