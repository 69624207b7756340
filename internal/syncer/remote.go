// Package syncer implements the offline sync coordinator: upload of locally
// pending records to the remote document store, download of remote changes,
// and conflict detection and resolution. Plaintext never passes through this
// package; records travel as the same ciphertext the local store holds.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/shimishnaByAndy/clinicalvault/internal/common"
	"github.com/shimishnaByAndy/clinicalvault/internal/models"
)

// Document is the wire form of an encrypted record in the remote document
// store. Ciphertext and nonce are base64 in JSON; the body is opaque to the
// peer.
type Document struct {
	ID           string          `json:"id"`
	PatientID    string          `json:"patient_id"`
	TemplateType string          `json:"template_type"`
	Ciphertext   []byte          `json:"ciphertext"`
	Nonce        []byte          `json:"nonce"`
	Checksum     string          `json:"checksum"`
	KeyID        string          `json:"key_id"`
	ContentHash  string          `json:"content_hash"`
	Compliance   json.RawMessage `json:"compliance"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	ModifiedAt   time.Time       `json:"modified_at"`
}

// Client is the document-oriented API of the sync peer, addressed by
// collection name and document ID.
type Client interface {
	// Put creates or replaces a document.
	Put(ctx context.Context, collection string, doc *Document) error

	// Get returns a document, or nil when it does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// ListModifiedSince returns documents modified after the given instant.
	ListModifiedSince(ctx context.Context, collection string, since time.Time) ([]Document, error)

	// Delete removes a document; deleting an absent document is not an error.
	Delete(ctx context.Context, collection, id string) error
}

// HTTPClient talks to the sync peer over JSON/HTTP with retry and backoff.
type HTTPClient struct {
	base   string
	client *retryablehttp.Client
}

// NewHTTPClient returns a Client for the peer at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	return &HTTPClient{base: baseURL, client: rc}
}

func (c *HTTPClient) documentURL(collection, id string) string {
	return fmt.Sprintf("%s/collections/%s/documents/%s",
		c.base, url.PathEscape(collection), url.PathEscape(id))
}

func (c *HTTPClient) do(req *retryablehttp.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrNetworkFailure, err)
	}
	return resp, nil
}

func (c *HTTPClient) Put(ctx context.Context, collection string, doc *Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: marshal document: %v", common.ErrNetworkFailure, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut,
		c.documentURL(collection, doc.ID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrNetworkFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: put %s: %s", common.ErrNetworkFailure, doc.ID, resp.Status)
	}
	return nil
}

func (c *HTTPClient) Get(ctx context.Context, collection, id string) (*Document, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet,
		c.documentURL(collection, id), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrNetworkFailure, err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: get %s: %s", common.ErrNetworkFailure, id, resp.Status)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", common.ErrNetworkFailure, err)
	}
	return &doc, nil
}

func (c *HTTPClient) ListModifiedSince(ctx context.Context, collection string, since time.Time) ([]Document, error) {
	u := fmt.Sprintf("%s/collections/%s/documents?modified_since=%s",
		c.base, url.PathEscape(collection),
		url.QueryEscape(since.UTC().Format(time.RFC3339Nano)))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrNetworkFailure, err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: list %s: %s", common.ErrNetworkFailure, collection, resp.Status)
	}

	var docs []Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("%w: decode documents: %v", common.ErrNetworkFailure, err)
	}
	return docs, nil
}

func (c *HTTPClient) Delete(ctx context.Context, collection, id string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete,
		c.documentURL(collection, id), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrNetworkFailure, err)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: delete %s: %s", common.ErrNetworkFailure, id, resp.Status)
	}
	return nil
}

// docFromRecord converts a local encrypted row to its wire form.
func docFromRecord(rec *models.EncryptedRecord) *Document {
	return &Document{
		ID:           rec.ID,
		PatientID:    rec.PatientID,
		TemplateType: rec.TemplateType,
		Ciphertext:   rec.Ciphertext,
		Nonce:        rec.Nonce,
		Checksum:     rec.Checksum,
		KeyID:        rec.KeyID,
		ContentHash:  rec.ContentHash,
		Compliance:   json.RawMessage(rec.ComplianceJSON),
		Version:      rec.Version,
		CreatedAt:    rec.CreatedAt,
		ModifiedAt:   rec.ModifiedAt,
	}
}

// recordFromDoc converts a downloaded document to a local encrypted row.
func recordFromDoc(doc *Document) *models.EncryptedRecord {
	return &models.EncryptedRecord{
		ID:             doc.ID,
		PatientID:      doc.PatientID,
		TemplateType:   doc.TemplateType,
		Ciphertext:     doc.Ciphertext,
		Nonce:          doc.Nonce,
		Checksum:       doc.Checksum,
		KeyID:          doc.KeyID,
		ContentHash:    doc.ContentHash,
		ComplianceJSON: []byte(doc.Compliance),
		Version:        doc.Version,
		CreatedAt:      doc.CreatedAt,
		ModifiedAt:     doc.ModifiedAt,
	}
}
