package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/config"
	"github.com/intellego/platform/internal/logger"
	"github.com/intellego/platform/internal/util"
	"google.golang.org/genai"
)

const providerGemini = "gemini"

type GeminiService struct {
	Client         *genai.Client
	Model          string
	EmbeddingModel string
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	RequestTimeout time.Duration

	inputCostPerMTok  float64
	outputCostPerMTok float64
	// The circuit opens after circuitBreakerMax consecutive provider
	// failures. After circuitCooldown one trial call is let through; success
	// closes it, failure reopens it for another cooldown.
	consecutiveErrors atomic.Int32
	circuitBreakerMax int32
	circuitCooldown   time.Duration
	openedAt          atomic.Int64
	clock             util.Clock
	log               *logger.Logger
}

func NewGeminiService(ctx context.Context, cfg *config.GeminiConfig, log *logger.Logger) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	cooldown := cfg.CircuitCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &GeminiService{
		Client:            client,
		Model:             cfg.Model,
		EmbeddingModel:    cfg.EmbeddingModel,
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          90 * time.Second,
		RequestTimeout:    90 * time.Second,
		inputCostPerMTok:  cfg.InputCostPerMTok,
		outputCostPerMTok: cfg.OutputCostPerMTok,
		circuitBreakerMax: 5,
		circuitCooldown:   cooldown,
		clock:             util.SystemClock{},
		log:               log.With("provider", providerGemini),
	}, nil
}

func (s *GeminiService) GenerateFeedback(ctx context.Context, rc ReportContext) (*GeneratedFeedback, error) {
	result, err := s.GenerateContent(ctx, buildFeedbackPrompt(rc))
	if err != nil {
		return nil, err
	}
	out, err := parseFeedback(result.Text())
	if err != nil {
		return nil, fmt.Errorf("parse gemini feedback: %w", err)
	}
	in, outTok := usageTokens(result)
	out.Cost = s.cost(in, outTok)
	out.Provider = providerGemini
	return out, nil
}

func (s *GeminiService) GradeExam(ctx context.Context, ec ExamContext) (*GradedExam, error) {
	result, err := s.GenerateContent(ctx, buildExamPrompt(ec))
	if err != nil {
		return nil, err
	}
	out, err := parseExam(result.Text())
	if err != nil {
		return nil, fmt.Errorf("parse gemini grade: %w", err)
	}
	out.InputTokens, out.OutputTokens = usageTokens(result)
	out.Cost = s.cost(out.InputTokens, out.OutputTokens)
	out.Provider = providerGemini
	return out, nil
}

func (s *GeminiService) cost(in, out int) float64 {
	return (float64(in)*s.inputCostPerMTok + float64(out)*s.outputCostPerMTok) / 1_000_000
}

func usageTokens(resp *genai.GenerateContentResponse) (int, int) {
	if resp == nil || resp.UsageMetadata == nil {
		return 0, 0
	}
	return int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount)
}

func (s *GeminiService) GenerateContent(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
	if s.Model == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.calculateBackoff(attempt)
			s.log.Debug("retrying GenerateContent", "attempt", attempt, "max", s.MaxRetries, "delay", delay)

			select {
			case <-time.After(delay):
			case <-timeoutCtx.Done():
				return nil, apperror.NewTransientError(timeoutCtx.Err(), "gemini timeout during retry")
			}
		}

		result, err := s.Client.Models.GenerateContent(
			timeoutCtx,
			s.Model,
			genai.Text(prompt),
			&genai.GenerateContentConfig{
				Temperature:      genai.Ptr(float32(0.3)),
				ResponseMIMEType: "application/json",
			},
		)

		if err == nil {
			s.recordSuccess()
			if err := s.validateGenerateResponse(result); err != nil {
				return nil, fmt.Errorf("invalid response: %w", err)
			}
			return result, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			s.log.Warn("non-retryable gemini error", "error", err)
			s.recordFailure(err)
			return nil, fmt.Errorf("generate content failed: %w", err)
		}

		s.log.Debug("retryable gemini error", "attempt", attempt+1, "error", err)
	}

	s.recordFailure(lastErr)
	return nil, apperror.NewTransientError(lastErr, fmt.Sprintf("max retries (%d) exceeded for GenerateContent", s.MaxRetries))
}

func (s *GeminiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	trimmedText := strings.TrimSpace(text)
	if trimmedText == "" {
		return nil, fmt.Errorf("text for embedding cannot be empty")
	}

	if len(trimmedText) > 10000 {
		s.log.Debug("truncating embedding input", "length", len(trimmedText))
		trimmedText = trimmedText[:10000]
	}

	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	content := []*genai.Content{genai.NewContentFromText(trimmedText, genai.RoleUser)}

	var lastErr error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.calculateBackoff(attempt)
			s.log.Debug("retrying GenerateEmbedding", "attempt", attempt, "max", s.MaxRetries, "delay", delay)

			select {
			case <-time.After(delay):
			case <-timeoutCtx.Done():
				return nil, apperror.NewTransientError(timeoutCtx.Err(), "gemini timeout during retry")
			}
		}

		result, err := s.Client.Models.EmbedContent(timeoutCtx, s.EmbeddingModel, content, nil)

		if err == nil {
			s.recordSuccess()
			embeddings, err := s.validateEmbeddingResponse(result)
			if err != nil {
				return nil, fmt.Errorf("invalid embedding response: %w", err)
			}
			return embeddings, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			s.log.Warn("non-retryable gemini error", "error", err)
			s.recordFailure(err)
			return nil, fmt.Errorf("generate embedding failed: %w", err)
		}

		s.log.Debug("retryable gemini error", "attempt", attempt+1, "error", err)
	}

	s.recordFailure(lastErr)
	return nil, apperror.NewTransientError(lastErr, fmt.Sprintf("max retries (%d) exceeded for GenerateEmbedding", s.MaxRetries))
}

func (s *GeminiService) checkCircuit() error {
	n := s.consecutiveErrors.Load()
	if n < s.circuitBreakerMax {
		return nil
	}
	opened := s.openedAt.Load()
	now := s.clock.Now().UnixNano()
	if time.Duration(now-opened) >= s.circuitCooldown && s.openedAt.CompareAndSwap(opened, now) {
		s.log.Info("circuit breaker half-open, allowing trial call", "consecutive_errors", n)
		return nil
	}
	return apperror.NewTransientError(
		fmt.Errorf("too many consecutive errors (%d)", n), "circuit breaker open")
}

func (s *GeminiService) recordSuccess() {
	if s.consecutiveErrors.Swap(0) >= s.circuitBreakerMax {
		s.log.Info("circuit breaker closed")
	}
}

// recordFailure counts provider-side failures only. Client errors such as a
// rejected prompt say nothing about the provider's health.
func (s *GeminiService) recordFailure(err error) {
	if isClientError(err) {
		return
	}
	if n := s.consecutiveErrors.Add(1); n >= s.circuitBreakerMax {
		s.openedAt.Store(s.clock.Now().UnixNano())
		if n == s.circuitBreakerMax {
			s.log.Warn("circuit breaker open", "consecutive_errors", n, "cooldown", s.circuitCooldown)
		}
	}
}

func isClientError(err error) bool {
	var apiErr *genai.APIError
	if !errors.As(err, &apiErr) {
		return errors.Is(err, context.Canceled)
	}
	return apiErr.Code == 400 || apiErr.Code == 404 || apiErr.Code == 413
}

func (s *GeminiService) calculateBackoff(attempt int) time.Duration {
	return backoff(s.BaseDelay, s.MaxDelay, attempt)
}

// backoff doubles base per attempt up to max, with a quarter of jitter.
func backoff(base, max time.Duration, attempt int) time.Duration {
	delay := base * time.Duration(math.Pow(2, float64(attempt-1)))

	if delay > max {
		delay = max
	}

	jitter := time.Duration(float64(delay) * 0.25)
	delay = delay - jitter/2 + time.Duration(float64(jitter)*0.5)

	return delay
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		case 400, 401, 403, 404:
			return false
		}
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "temporary failure") ||
		strings.Contains(errMsg, "EOF")
}

func (s *GeminiService) validateGenerateResponse(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return fmt.Errorf("response is nil")
	}
	if len(resp.Candidates) == 0 {
		return fmt.Errorf("no candidates in response")
	}
	if resp.Candidates[0].Content == nil {
		return fmt.Errorf("candidate content is nil")
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("no parts in content")
	}
	return nil
}

func (s *GeminiService) validateEmbeddingResponse(resp *genai.EmbedContentResponse) ([]float32, error) {
	if resp == nil {
		return nil, fmt.Errorf("response is nil")
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	embeddings := resp.Embeddings[0].Values
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding vector is empty")
	}
	for i, val := range embeddings {
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil, fmt.Errorf("invalid embedding value at index %d: %v", i, val)
		}
	}
	return embeddings, nil
}
