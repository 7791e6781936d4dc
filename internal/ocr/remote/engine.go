// Package remote implements the asynchronous, network-bound, higher
// accuracy OCR engine. It may report text blocks in its own coordinate
// space; the orchestrator's reconciler
// (internal/orchestrator/reconcile.go) is responsible for mapping that
// space onto the caller's pixel space.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"

	"github.com/kpark/examsplit/internal/config"
	"github.com/kpark/examsplit/internal/geometry"
	"github.com/kpark/examsplit/internal/ocr"
)

const (
	engineID          = "remote-coordinate"
	defaultTimeout    = 120 * time.Second
	defaultRecognizeP = "/v1/recognize"
)

// Config configures the remote engine's HTTP client.
type Config struct {
	BaseURL     string
	Credentials *config.RemoteCredentials
	Timeout     time.Duration
	// HTTPClient allows tests to inject a transport stub; if nil, a
	// client with Timeout is constructed.
	HTTPClient *http.Client
}

// DefaultConfig returns sane defaults; BaseURL and Credentials must
// still be set by the caller.
func DefaultConfig() Config {
	return Config{Timeout: defaultTimeout}
}

// Engine calls a remote, coordinate-returning OCR service over HTTP.
type Engine struct {
	cfg    Config
	client *http.Client
}

// New constructs a remote engine. It does not validate credentials
// eagerly: a credential-less engine is valid to construct and simply
// fails every Run with FailureUnavailable, so availability is
// evaluated per call rather than at construction time.
func New(cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Engine{cfg: cfg, client: client}
}

func (e *Engine) ID() string { return engineID }

type recognizeRequest struct {
	ImagePNGBase64 string   `json:"image_png_base64"`
	Languages      []string `json:"languages"`
	DPI            int      `json:"dpi"`
}

type recognizeBlock struct {
	Text       string  `json:"text"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	W          int     `json:"w"`
	H          int     `json:"h"`
	Confidence float64 `json:"confidence"`
}

type recognizeResponse struct {
	Blocks       []recognizeBlock `json:"blocks"`
	PageWidth    int              `json:"page_width"`
	PageHeight   int              `json:"page_height"`
	ErrorMessage string           `json:"error,omitempty"`
}

// Run implements ocr.Engine.
func (e *Engine) Run(ctx context.Context, img image.Image, hints ocr.Hints, dpi int) (ocr.Response, error) {
	start := time.Now()

	if e.cfg.Credentials.Empty() {
		return ocr.Response{}, ocr.NewError(ocr.FailureUnavailable, errors.New("remote engine: no credentials configured"))
	}
	if img == nil {
		return ocr.Response{}, ocr.NewError(ocr.FailurePermanent, errors.New("remote engine: nil image"))
	}
	if e.cfg.BaseURL == "" {
		return ocr.Response{}, ocr.NewError(ocr.FailureUnavailable, errors.New("remote engine: no base URL configured"))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ocr.Response{}, ocr.NewError(ocr.FailurePermanent, fmt.Errorf("remote engine: encoding image: %w", err))
	}

	body := recognizeRequest{
		ImagePNGBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Languages:      hints.Languages,
		DPI:            dpi,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return ocr.Response{}, ocr.NewError(ocr.FailurePermanent, fmt.Errorf("remote engine: marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+defaultRecognizeP, bytes.NewReader(payload))
	if err != nil {
		return ocr.Response{}, ocr.NewError(ocr.FailurePermanent, fmt.Errorf("remote engine: building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-Id", e.cfg.Credentials.AppID)
	req.Header.Set("X-App-Key", e.cfg.Credentials.AppKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return ocr.Response{}, classifyTransportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return ocr.Response{}, ocr.NewError(ocr.FailureTransient, fmt.Errorf("remote engine: server error %d", resp.StatusCode))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ocr.Response{}, ocr.NewError(ocr.FailurePermanent, fmt.Errorf("remote engine: auth rejected (%d)", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return ocr.Response{}, ocr.NewError(ocr.FailurePermanent, fmt.Errorf("remote engine: client error %d", resp.StatusCode))
	}

	var parsed recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ocr.Response{}, ocr.NewError(ocr.FailurePermanent, fmt.Errorf("remote engine: decoding response: %w", err))
	}

	blocks := make([]ocr.TextBlock, 0, len(parsed.Blocks))
	for _, b := range parsed.Blocks {
		rect, err := geometry.NewRect(b.X, b.Y, b.W, b.H)
		if err != nil {
			continue // drop malformed remote boxes rather than fail the whole response
		}
		blocks = append(blocks, ocr.TextBlock{
			Text:       b.Text,
			Box:        rect,
			Confidence: b.Confidence,
			Engine:     ocr.EngineRemote,
		})
	}

	return ocr.Response{
		Blocks:   blocks,
		EngineID: engineID,
		PageDims: geometry.Dims{W: parsed.PageWidth, H: parsed.PageHeight},
		Elapsed:  time.Since(start),
	}, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ocr.NewError(ocr.FailureTransient, fmt.Errorf("remote engine: timeout: %w", err))
	}
	return ocr.NewError(ocr.FailureTransient, fmt.Errorf("remote engine: request failed: %w", err))
}
