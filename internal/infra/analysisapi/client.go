// Package analysisapi talks to the external analysis API: image inference,
// advisory text and the advisory chat.
package analysisapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"

	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
)

const (
	DefaultTimeout = 30 * time.Second

	pathAnalyze  = "/api/analyze"
	pathAdvisory = "/api/advisory"
	pathChat     = "/api/advisory/chat"
	pathHealth   = "/api/health"

	maxErrorBody = 512
)

type Client struct {
	baseURL    string
	http       *http.Client
	log        zerolog.Logger
	onFallback func(op string)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithFallbackHook is called with "advisory" or "chat" whenever a fallback value is returned.
func WithFallbackHook(fn func(op string)) Option {
	return func(c *Client) { c.onFallback = fn }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type analyzeResponse struct {
	Error         string       `json:"error,omitempty"`
	TopPrediction *prediction  `json:"top_prediction"`
	Predictions   []prediction `json:"predictions"`
}

// Analyze uploads the image and normalizes the response. Probabilities are
// built from the predictions list in order; a repeated label keeps the last value.
func (c *Client) Analyze(ctx context.Context, file domain.File) (domain.PredictionResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	ct := file.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", multipart.FileContentDisposition("file", file.Name))
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return domain.PredictionResult{}, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return domain.PredictionResult{}, fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.PredictionResult{}, fmt.Errorf("build multipart: %w", err)
	}

	var out analyzeResponse
	if err := c.do(ctx, http.MethodPost, pathAnalyze, mw.FormDataContentType(), &body, &out); err != nil {
		return domain.PredictionResult{}, err
	}

	if out.Error != "" {
		return domain.PredictionResult{}, fmt.Errorf("%w: %s", ErrMalformedResponse, out.Error)
	}
	if out.TopPrediction == nil || out.TopPrediction.Label == "" {
		return domain.PredictionResult{}, fmt.Errorf("%w: missing top_prediction", ErrMalformedResponse)
	}
	if !isFraction(out.TopPrediction.Confidence) {
		return domain.PredictionResult{}, fmt.Errorf("%w: confidence %v out of range", ErrMalformedResponse, out.TopPrediction.Confidence)
	}

	preds := make([]domain.Prediction, 0, len(out.Predictions))
	for _, p := range out.Predictions {
		if !isFraction(p.Confidence) {
			return domain.PredictionResult{}, fmt.Errorf("%w: probability %v for %q out of range", ErrMalformedResponse, p.Confidence, p.Label)
		}
		preds = append(preds, domain.Prediction{Label: p.Label, Confidence: p.Confidence})
	}

	return domain.PredictionResult{
		Label:         out.TopPrediction.Label,
		Confidence:    out.TopPrediction.Confidence,
		Probabilities: domain.FromPredictions(preds),
	}, nil
}

type advisoryRequest struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// GetAdvisory never fails: any error, or a reply without title and summary,
// yields FallbackAdvisory. The error return satisfies domain.Advisor.
func (c *Client) GetAdvisory(ctx context.Context, label string, confidence float64) (domain.AdvisoryResult, error) {
	var out domain.AdvisoryResult
	err := c.postJSON(ctx, pathAdvisory, advisoryRequest{Label: label, Confidence: confidence}, &out)
	if err == nil && (out.Title != "" || out.Summary != "") {
		return out, nil
	}

	ev := c.log.Warn().Str("label", label)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("advisory call failed, using fallback")
	c.fallback("advisory")
	return FallbackAdvisory(label, confidence), nil
}

type chatRequest struct {
	Label      string            `json:"label"`
	Confidence float64           `json:"confidence"`
	History    []domain.ChatTurn `json:"history"`
}

type chatResponse struct {
	Content string `json:"content"`
}

// SendChatTurn appends message as a user turn and returns the assistant reply,
// or domain.ChatFallbackReply on any failure.
func (c *Client) SendChatTurn(ctx context.Context, label string, confidence float64, history []domain.ChatTurn, message string) string {
	turns := make([]domain.ChatTurn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, domain.ChatTurn{Role: domain.RoleUser, Content: message})

	var out chatResponse
	err := c.postJSON(ctx, pathChat, chatRequest{Label: label, Confidence: confidence, History: turns}, &out)
	if err == nil && strings.TrimSpace(out.Content) != "" {
		return out.Content
	}

	ev := c.log.Warn().Str("label", label).Int("turns", len(turns))
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("chat call failed, using fallback reply")
	c.fallback("chat")
	return domain.ChatFallbackReply
}

// HealthStatus is the API's own health report.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	NumClasses  int    `json:"num_classes"`
}

func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var out HealthStatus
	if err := c.do(ctx, http.MethodGet, pathHealth, "", nil, &out); err != nil {
		return HealthStatus{}, err
	}
	return out, nil
}

// Check reports the API unhealthy unless its model is loaded.
func (c *Client) Check(ctx context.Context) error {
	h, err := c.Health(ctx)
	if err != nil {
		return err
	}
	if h.Status != "ok" || !h.ModelLoaded {
		return fmt.Errorf("analysis api status %q, model loaded %t", h.Status, h.ModelLoaded)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(b), out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("analysis api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrMalformedResponse, path, err)
	}
	return nil
}

func (c *Client) fallback(op string) {
	if c.onFallback != nil {
		c.onFallback(op)
	}
}

func isFraction(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
