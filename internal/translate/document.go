package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// DocumentStatus is the lifecycle state of an uploaded document on the
// external document-translation service.
type DocumentStatus string

const (
	DocumentQueued      DocumentStatus = "queued"
	DocumentTranslating DocumentStatus = "translating"
	DocumentDone        DocumentStatus = "done"
	DocumentError       DocumentStatus = "error"
)

// DocumentProvider talks to an external service that translates whole
// document files asynchronously. The caller uploads a file, polls the
// returned reference, and downloads the result when the status is done.
type DocumentProvider interface {
	Upload(ctx context.Context, filename string, data []byte, sourceLang, targetLang string) (string, error)
	Poll(ctx context.Context, ref string) (DocumentStatus, error)
	Download(ctx context.Context, ref string) ([]byte, error)
}

// HTTPDocumentProvider implements DocumentProvider against a REST endpoint:
//
//	POST   {base}/documents             multipart upload, returns {"id": ...}
//	GET    {base}/documents/{id}        returns {"status": ...}
//	GET    {base}/documents/{id}/file   returns the translated file bytes
type HTTPDocumentProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPDocumentProvider creates a document provider for the given endpoint.
func NewHTTPDocumentProvider(baseURL, apiKey string) *HTTPDocumentProvider {
	return &HTTPDocumentProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload submits a document for translation and returns the service's
// reference id.
func (p *HTTPDocumentProvider) Upload(ctx context.Context, filename string, data []byte, sourceLang, targetLang string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", &ProviderError{Message: "build upload form", Cause: err}
	}
	if _, err := part.Write(data); err != nil {
		return "", &ProviderError{Message: "build upload form", Cause: err}
	}
	_ = mw.WriteField("source_lang", sourceLang)
	_ = mw.WriteField("target_lang", targetLang)
	if err := mw.Close(); err != nil {
		return "", &ProviderError{Message: "build upload form", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/documents", &body)
	if err != nil {
		return "", &ProviderError{Message: "build upload request", Cause: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &ProviderError{Message: "upload document", Cause: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", statusError("upload document", resp)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ProviderError{Message: "decode upload response", Cause: err}
	}
	if result.ID == "" {
		return "", &ProviderError{Message: "upload response missing id"}
	}
	return result.ID, nil
}

// Poll reports the document's translation status.
func (p *HTTPDocumentProvider) Poll(ctx context.Context, ref string) (DocumentStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/documents/"+ref, nil)
	if err != nil {
		return "", &ProviderError{Message: "build poll request", Cause: err}
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &ProviderError{Message: "poll document", Cause: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("poll document", resp)
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ProviderError{Message: "decode poll response", Cause: err}
	}

	switch DocumentStatus(result.Status) {
	case DocumentQueued, DocumentTranslating, DocumentDone, DocumentError:
		return DocumentStatus(result.Status), nil
	default:
		return "", &ProviderError{Message: fmt.Sprintf("unknown document status %q", result.Status)}
	}
}

// Download fetches the translated file bytes.
func (p *HTTPDocumentProvider) Download(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/documents/"+ref+"/file", nil)
	if err != nil {
		return nil, &ProviderError{Message: "build download request", Cause: err}
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Message: "download document", Cause: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("download document", resp)
	}
	return io.ReadAll(resp.Body)
}

func (p *HTTPDocumentProvider) authorize(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

func statusError(op string, resp *http.Response) error {
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return &ProviderError{
		Message:   fmt.Sprintf("%s: unexpected status %d", op, resp.StatusCode),
		Retryable: retryable,
	}
}

var _ DocumentProvider = (*HTTPDocumentProvider)(nil)
