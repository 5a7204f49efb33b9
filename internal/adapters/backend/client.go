// Package backend is the typed HTTP client for the analytics services that
// perform forecasting, segmentation, churn scoring, anomaly detection,
// the dataset assistant and product recommendations.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/smartbiz/pkg/metrics"
)

// Operation names, used in errors and metric labels.
const (
	OpForecast        = "forecast"
	OpSegment         = "segment"
	OpChurn           = "churn"
	OpAnomalies       = "anomalies"
	OpDataset         = "dataset"
	OpChat            = "chat"
	OpRecommendUpload = "recommend_upload"
	OpRecommend       = "recommend"
)

const (
	fileField = "file"

	defaultTimeout          = 60 * time.Second
	defaultMaxResponseBytes = 32 << 20
)

// Client calls the analytics services. It is safe for concurrent use.
type Client struct {
	backendURL       string
	assistantURL     string
	recommenderURL   string
	http             *http.Client
	timeout          time.Duration
	maxResponseBytes int64
}

// New creates a client for the analytics backend at backendURL. The assistant
// and recommender default to the same base URL.
func New(backendURL string, opts ...Option) *Client {
	base := strings.TrimRight(backendURL, "/")
	c := &Client{
		backendURL:       base,
		assistantURL:     base,
		recommenderURL:   base,
		http:             &http.Client{},
		timeout:          defaultTimeout,
		maxResponseBytes: defaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Forecast runs model over the uploaded historical series.
func (c *Client) Forecast(ctx context.Context, model string, up Upload) (*ForecastResponse, error) {
	target := endpoint(c.backendURL, "/forecasting", url.Values{"model": {model}})
	return call[ForecastResponse](ctx, c, OpForecast, target, form{file: &up})
}

// Segment clusters the uploaded customers with method.
func (c *Client) Segment(ctx context.Context, method string, up Upload) (*SegmentResponse, error) {
	target := endpoint(c.backendURL, "/segmentation/segment-customers", url.Values{"method": {method}})
	return call[SegmentResponse](ctx, c, OpSegment, target, form{file: &up})
}

// PredictChurn scores churn for the uploaded customers.
func (c *Client) PredictChurn(ctx context.Context, up Upload) (*ChurnResponse, error) {
	target := endpoint(c.backendURL, "/predict-churn", nil)
	return call[ChurnResponse](ctx, c, OpChurn, target, form{file: &up})
}

// DetectAnomalies flags anomalous rows with method.
func (c *Client) DetectAnomalies(ctx context.Context, method string, up Upload) (*AnomalyResponse, error) {
	target := endpoint(c.backendURL, "/anomaly-detection", url.Values{"method": {method}})
	return call[AnomalyResponse](ctx, c, OpAnomalies, target, form{file: &up})
}

// UploadDataset gives the assistant the dataset later questions refer to.
func (c *Client) UploadDataset(ctx context.Context, up Upload) (*DatasetResponse, error) {
	target := endpoint(c.assistantURL, "/upload", nil)
	return call[DatasetResponse](ctx, c, OpDataset, target, form{file: &up})
}

// Chat asks the assistant a question about the uploaded dataset.
func (c *Client) Chat(ctx context.Context, question string) (*ChatResponse, error) {
	target := endpoint(c.assistantURL, "/chat", nil)
	return call[ChatResponse](ctx, c, OpChat, target, form{fields: [][2]string{{"user_query", question}}})
}

// Recommend uploads the purchase history and asks for products for customerID.
func (c *Client) Recommend(ctx context.Context, customerID string, up Upload) (*RecommendResponse, error) {
	uploadURL := endpoint(c.recommenderURL, "/upload", nil)
	if _, err := call[json.RawMessage](ctx, c, OpRecommendUpload, uploadURL, form{file: &up}); err != nil {
		return nil, err
	}
	target := endpoint(c.recommenderURL, "/recommend", nil)
	return call[RecommendResponse](ctx, c, OpRecommend, target, form{fields: [][2]string{{"customer_id", customerID}}})
}

// call posts f to target and decodes a successful response into T.
func call[T any](ctx context.Context, c *Client, op, target string, f form) (*T, error) {
	body, contentType, err := f.encode()
	if err != nil {
		return nil, fail(op, KindTransport, 0, "", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, fail(op, KindTransport, 0, "", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RecordBackendLatency(op, float64(time.Since(start).Nanoseconds())/1e6)
	if err != nil {
		metrics.RecordBackendRequest(op, "0")
		return nil, fail(op, KindTransport, 0, "", err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordBackendRequest(op, strconv.Itoa(resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes))
	if err != nil {
		return nil, fail(op, KindTransport, resp.StatusCode, "", err)
	}

	// Bodies that are not JSON objects leave env empty.
	var env envelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fail(op, KindStatus, resp.StatusCode, env.message(), nil)
	}
	if env.Error != "" {
		return nil, fail(op, KindReported, resp.StatusCode, env.Error, nil)
	}

	var out T
	if len(bytes.TrimSpace(raw)) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fail(op, KindDecode, resp.StatusCode, "", err)
	}
	return &out, nil
}

func fail(op, kind string, status int, message string, err error) *Error {
	metrics.RecordBackendError(op, kind)
	return &Error{Op: op, Kind: kind, Status: status, Message: message, Err: err}
}

func endpoint(base, path string, q url.Values) string {
	if len(q) == 0 {
		return base + path
	}
	return base + path + "?" + q.Encode()
}

// form is a multipart body with optional text fields and one CSV file.
type form struct {
	fields [][2]string
	file   *Upload
}

func (f form) encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, kv := range f.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", kv[0], err)
		}
	}
	if f.file != nil {
		name := f.file.Filename
		if name == "" {
			name = "upload.csv"
		}
		part, err := w.CreateFormFile(fileField, name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(part, bytes.NewReader(f.file.Content)); err != nil {
			return nil, "", fmt.Errorf("copy file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
