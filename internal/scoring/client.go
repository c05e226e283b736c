// Package scoring talks to the external semantic-comparison service and turns
// its confidence signals into marks and feedback.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/autoeval/autoeval-go-api/internal/observability"
)

var (
	// ErrUnavailable indicates a transport-level failure reaching the scoring service.
	ErrUnavailable = errors.New("scoring service unavailable")
	// ErrTimeout indicates the scoring call exceeded its deadline.
	ErrTimeout = errors.New("scoring service timed out")
	// ErrMalformed indicates the scoring response was empty or missing required fields.
	ErrMalformed = errors.New("scoring response malformed")
)

// Result carries the numeric score and the three comparison signals for one
// answer. Entailment, neutral and contradiction are independent confidences;
// they are not required to sum to 1.
type Result struct {
	Score         float64
	Entailment    float64
	Neutral       float64
	Contradiction float64
}

// Client scores one student answer against the model answer.
type Client interface {
	Score(ctx context.Context, correctAnswer, studentAnswer string, maxMarks float64) (Result, error)
}

type compareRequest struct {
	TeacherAnswer string  `json:"teacher_answer"`
	StudentAnswer string  `json:"student_answer"`
	TotalMarks    float64 `json:"total_marks"`
}

type compareResponse struct {
	Score         *float64 `json:"score"`
	Entailment    float64  `json:"entailment"`
	Neutral       float64  `json:"neutral"`
	Contradiction float64  `json:"contradiction"`
}

// Config defines the scoring client options.
type Config struct {
	URL     string
	Timeout time.Duration
	Logger  zerolog.Logger
}

type httpClient struct {
	url    string
	client *http.Client
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewClient builds an HTTP scoring client. The timeout defaults to 20 seconds.
func NewClient(cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("scoring url is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	return &httpClient{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger.With().Str("component", "scoring_client").Logger(),
		tracer: otel.Tracer("github.com/autoeval/autoeval-go-api/internal/scoring"),
	}, nil
}

func (c *httpClient) Score(ctx context.Context, correctAnswer, studentAnswer string, maxMarks float64) (Result, error) {
	// Unanswered questions score zero without burning a round-trip.
	if strings.TrimSpace(studentAnswer) == "" {
		return Result{}, nil
	}

	ctx, span := c.tracer.Start(ctx, "scoring.compare", trace.WithAttributes(
		attribute.Float64("scoring.max_marks", maxMarks),
	))
	defer span.End()

	body, err := json.Marshal(compareRequest{
		TeacherAnswer: correctAnswer,
		StudentAnswer: studentAnswer,
		TotalMarks:    maxMarks,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode scoring request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	observability.ScoringLatency().Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		if isTimeout(err) {
			observability.ScoringFailures().WithLabelValues("timeout").Inc()
			c.logger.Warn().Err(err).Msg("scoring call timed out")
			return Result{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		observability.ScoringFailures().WithLabelValues("transport").Inc()
		c.logger.Error().Err(err).Msg("scoring call failed")
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observability.ScoringFailures().WithLabelValues("status").Inc()
		span.SetStatus(codes.Error, "unexpected status")
		return Result{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var decoded compareResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		observability.ScoringFailures().WithLabelValues("malformed").Inc()
		span.RecordError(err)
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if decoded.Score == nil {
		observability.ScoringFailures().WithLabelValues("malformed").Inc()
		return Result{}, fmt.Errorf("%w: score missing", ErrMalformed)
	}

	return Result{
		Score:         *decoded.Score,
		Entailment:    decoded.Entailment,
		Neutral:       decoded.Neutral,
		Contradiction: decoded.Contradiction,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
