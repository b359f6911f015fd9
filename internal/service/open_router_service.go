package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/config"
	"github.com/intellego/platform/internal/logger"
	"github.com/tidwall/gjson"
)

const providerOpenRouter = "openrouter"

type OpenRouterService struct {
	client *resty.Client
	model  string
	log    *logger.Logger
}

func NewOpenRouterService(cfg *config.OpenRouterConfig, log *logger.Logger) *OpenRouterService {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(90 * time.Second)
	return &OpenRouterService{
		client: client,
		model:  cfg.Model,
		log:    log.With("provider", providerOpenRouter),
	}
}

// complete sends a single-turn chat completion and returns the assistant text
// along with the reported cost and token usage.
func (s *OpenRouterService) complete(ctx context.Context, system, prompt string) (string, float64, int, int, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"model": s.model,
			"messages": []map[string]string{
				{"role": "system", "content": system},
				{"role": "user", "content": prompt},
			},
			"response_format": map[string]string{"type": "json_object"},
			"usage":           map[string]bool{"include": true},
		}).
		Post("/chat/completions")
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, 0, 0, err
		}
		return "", 0, 0, 0, apperror.NewTransientError(err, "openrouter request failed")
	}

	body := resp.String()
	if code := resp.StatusCode(); code != http.StatusOK {
		err := fmt.Errorf("openrouter status %d: %s", code, gjson.Get(body, "error.message").String())
		if code == http.StatusTooManyRequests || code >= 500 {
			return "", 0, 0, 0, apperror.NewTransientError(err, "openrouter unavailable")
		}
		return "", 0, 0, 0, err
	}

	text := gjson.Get(body, "choices.0.message.content").String()
	if text == "" {
		return "", 0, 0, 0, fmt.Errorf("no response from LLM")
	}
	usage := gjson.Get(body, "usage")
	s.log.Debug("openrouter completion", "prompt_tokens", usage.Get("prompt_tokens").Int(), "completion_tokens", usage.Get("completion_tokens").Int())
	return text, usage.Get("cost").Float(), int(usage.Get("prompt_tokens").Int()), int(usage.Get("completion_tokens").Int()), nil
}

func (s *OpenRouterService) GenerateFeedback(ctx context.Context, rc ReportContext) (*GeneratedFeedback, error) {
	text, cost, _, _, err := s.complete(ctx, "You are an instructor giving weekly progress feedback to a student.", buildFeedbackPrompt(rc))
	if err != nil {
		return nil, err
	}
	out, err := parseFeedback(text)
	if err != nil {
		return nil, fmt.Errorf("parse openrouter feedback: %w", err)
	}
	out.Cost = cost
	out.Provider = providerOpenRouter
	return out, nil
}

func (s *OpenRouterService) GradeExam(ctx context.Context, ec ExamContext) (*GradedExam, error) {
	text, cost, in, outTok, err := s.complete(ctx, "You are an instructor grading a student's exam.", buildExamPrompt(ec))
	if err != nil {
		return nil, err
	}
	out, err := parseExam(text)
	if err != nil {
		return nil, fmt.Errorf("parse openrouter grade: %w", err)
	}
	out.Cost = cost
	out.InputTokens, out.OutputTokens = in, outTok
	out.Provider = providerOpenRouter
	return out, nil
}
