// Package extract calls the external structured-extraction capability and
// forces its best-effort output into the certificate field schema. Nothing
// untyped leaves this package.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"coverly/internal/domain"
)

var (
	// ErrUnavailable means the extraction service could not be reached or
	// answered with a server error, after the single bounded retry.
	ErrUnavailable = errors.New("extraction service unavailable")
	// ErrTimeout means the per-call latency budget was exhausted.
	ErrTimeout = errors.New("extraction timed out")
)

// Client talks to the extraction service. Construct with New and inject
// everywhere; tests substitute the Extractor port with a fake instead of
// reaching for a global.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	schema  []string
	log     *slog.Logger
}

// Outbound call budget. The bucket is deliberately conservative: one
// extraction per document, and bursts only as deep as a handful of
// concurrent submissions.
const (
	callsPerSecond = 2.0
	callBurst      = 4
)

func New(baseURL, apiKey string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{},
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), callBurst),
		schema:  domain.FieldCatalog(),
		log:     log,
	}
}

type wirePage struct {
	Index     int    `json:"index"`
	ImageData string `json:"image_data"`
	Format    string `json:"format"`
}

type wireRequest struct {
	Schema []string   `json:"schema"`
	Pages  []wirePage `json:"pages"`
}

// wireObservation is what the service claims to have read. Treated as
// untrusted until projected through the schema.
type wireObservation struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Page     int    `json:"page"`
	Evidence string `json:"evidence,omitempty"`
}

type wireResponse struct {
	Fields []wireObservation `json:"fields"`
}

// Extract ships the pages to the service and projects the response onto
// the field catalog. Every schema field appears in the result exactly
// once, tagged present, absent, or ambiguous.
func (c *Client) Extract(ctx context.Context, pages []domain.PageImage) ([]domain.ExtractedField, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classify(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(c.request(pages))
	if err != nil {
		return nil, fmt.Errorf("encode extraction request: %w", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		if !transient(err) {
			return nil, classify(err)
		}
		// One bounded retry on transient transport failure, never more.
		c.log.Warn("extraction call failed, retrying once", "err", err)
		resp, err = c.post(ctx, body)
		if err != nil {
			return nil, classify(err)
		}
	}

	var out wireResponse
	if err := json.Unmarshal(resp, &out); err != nil {
		// Malformed output degrades to an all-absent field set rather than
		// propagating garbage downstream.
		c.log.Warn("extraction response unparseable, projecting empty", "err", err)
		out = wireResponse{}
	}
	return Project(c.schema, out.Fields), nil
}

func (c *Client) request(pages []domain.PageImage) wireRequest {
	req := wireRequest{Schema: c.schema, Pages: make([]wirePage, 0, len(pages))}
	for _, p := range pages {
		req.Pages = append(req.Pages, wirePage{
			Index:     p.Index,
			ImageData: base64.StdEncoding.EncodeToString(p.Data),
			Format:    p.Format,
		})
	}
	return req
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode}
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("extraction service returned %d", e.code) }

// transient reports whether one retry is worth attempting: transport
// errors and gateway-class statuses, but never a context deadline and
// never a 4xx.
func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusBadGateway || se.code == http.StatusServiceUnavailable || se.code == http.StatusGatewayTimeout
	}
	return true
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
