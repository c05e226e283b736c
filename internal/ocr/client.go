// Package ocr calls the external OCR service that turns scanned answer-sheet
// images into the raw transcript consumed by the parser.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const extractPath = "/getTextFromImage/"

var (
	// ErrUnavailable indicates the OCR service could not be reached.
	ErrUnavailable = errors.New("ocr service unavailable")
	// ErrMalformed indicates the OCR response lacked the extracted text.
	ErrMalformed = errors.New("ocr response malformed")
)

// File is one scanned page handed to the OCR service.
type File struct {
	Name    string
	Content []byte
}

// Client extracts text from scanned answer-sheet pages.
type Client interface {
	ExtractText(ctx context.Context, files []File) (string, error)
}

// Config defines the OCR client options.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

type httpClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewClient builds an HTTP OCR client.
func NewClient(cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("ocr base url is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &httpClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With().Str("component", "ocr_client").Logger(),
		tracer:  otel.Tracer("github.com/autoeval/autoeval-go-api/internal/ocr"),
	}, nil
}

type extractResponse struct {
	ExtractedText *string `json:"extracted_text"`
}

func (c *httpClient) ExtractText(ctx context.Context, files []File) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("at least one file is required")
	}

	ctx, span := c.tracer.Start(ctx, "ocr.extract", trace.WithAttributes(
		attribute.Int("ocr.file_count", len(files)),
	))
	defer span.End()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, file := range files {
		part, err := writer.CreateFormFile("files", file.Name)
		if err != nil {
			return "", fmt.Errorf("build multipart body: %w", err)
		}
		if _, err := io.Copy(part, bytes.NewReader(file.Content)); err != nil {
			return "", fmt.Errorf("write multipart body: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+extractPath, body)
	if err != nil {
		return "", fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		c.logger.Error().Err(err).Msg("ocr call failed")
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, "unexpected status")
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var decoded extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if decoded.ExtractedText == nil {
		return "", fmt.Errorf("%w: extracted_text missing", ErrMalformed)
	}

	return *decoded.ExtractedText, nil
}
