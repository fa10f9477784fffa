// Package tablestore is a thin request layer over the remote tabular store's
// REST API. It knows how to build filter formulas, chunk id lists and issue
// read/patch operations; everything above it works with parsed Records.
package tablestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Record is a single row of a remote table
type Record struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

// RemoteError is returned for any non-success response from the store
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote operation failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote operation failed: status %d: %s", e.StatusCode, e.Message)
}

// Observer is notified of the outcome of every store operation
type Observer interface {
	ObserveRemoteCall(table, operation string, err error)
}

// Config holds client configuration
type Config struct {
	BaseURL   string
	BaseID    string
	APIKey    string
	Timeout   time.Duration
	BatchSize int
}

// Client issues requests against a single base of the remote store
type Client struct {
	baseURL    string
	baseID     string
	apiKey     string
	batchSize  int
	httpClient *http.Client
	observer   Observer
	logger     *zap.Logger
}

// NewClient creates a new tabular store client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		baseID:     cfg.BaseID,
		apiKey:     cfg.APIKey,
		batchSize:  batchSize,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// SetObserver registers o to receive the outcome of every subsequent
// operation. A nil observer disables reporting.
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

func (c *Client) observe(table, operation string, err error) {
	if c.observer != nil {
		c.observer.ObserveRemoteCall(table, operation, err)
	}
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

type errorResponse struct {
	Error json.RawMessage `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// List retrieves all records of a table matching the filter formula,
// following offset pagination until the store stops returning one.
// An empty formula returns the whole table.
func (c *Client) List(ctx context.Context, table, formula string) ([]Record, error) {
	records, err := c.listPages(ctx, table, formula)
	c.observe(table, "list", err)
	return records, err
}

func (c *Client) listPages(ctx context.Context, table, formula string) ([]Record, error) {
	var records []Record
	offset := ""

	for {
		query := url.Values{}
		if formula != "" {
			query.Set("filterByFormula", formula)
		}
		if offset != "" {
			query.Set("offset", offset)
		}

		endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table))
		if encoded := query.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

// GetByID retrieves a single record by its id
func (c *Client) GetByID(ctx context.Context, table, id string) (*Record, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table), url.PathEscape(id))

	var record Record
	err := c.do(ctx, http.MethodGet, endpoint, nil, &record)
	c.observe(table, "get", err)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByIDs retrieves the records with the given ids, chunking the id list
// to keep each filter formula under the store's expression length limit.
// Any chunk failure fails the whole call: callers must treat an error as
// "nothing fetched", never as partial data.
func (c *Client) ListByIDs(ctx context.Context, table string, ids []string) ([]Record, error) {
	var records []Record
	for _, chunk := range ChunkIDs(ids, c.batchSize) {
		batch, err := c.List(ctx, table, IDInFormula(chunk))
		if err != nil {
			return nil, fmt.Errorf("batch fetch from %s: %w", table, err)
		}
		records = append(records, batch...)
	}
	return records, nil
}

// BatchSize returns the id-chunk size the client uses, so callers building
// their own OR formulas can chunk consistently.
func (c *Client) BatchSize() int {
	return c.batchSize
}

type updateRequest struct {
	Fields   map[string]any `json:"fields"`
	Typecast bool           `json:"typecast"`
}

// Update patches the given fields of a single record. Exactly one attempt is
// made; failures propagate to the caller with no automatic retry.
func (c *Client) Update(ctx context.Context, table, id string, fields map[string]any) (*Record, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table), url.PathEscape(id))

	body, err := json.Marshal(updateRequest{Fields: fields, Typecast: true})
	if err != nil {
		return nil, fmt.Errorf("marshal update request: %w", err)
	}

	var record Record
	err = c.do(ctx, http.MethodPatch, endpoint, body, &record)
	c.observe(table, "update", err)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// do issues a single request and decodes the response into out
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote operation failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remoteErr := &RemoteError{StatusCode: resp.StatusCode, Message: extractErrorMessage(data)}
		c.logger.Error("Store request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", remoteErr.Message))
		return remoteErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error("Malformed store response",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return &RemoteError{StatusCode: resp.StatusCode, Message: "malformed response payload"}
	}

	return nil
}

// extractErrorMessage pulls a human-readable message out of an error body.
// The store returns either {"error": "CODE"} or {"error": {"type", "message"}}.
func extractErrorMessage(body []byte) string {
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(envelope.Error, &asString); err == nil {
		return asString
	}

	var detail errorDetail
	if err := json.Unmarshal(envelope.Error, &detail); err == nil {
		if detail.Message != "" {
			return detail.Message
		}
		return detail.Type
	}

	return ""
}
