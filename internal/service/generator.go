package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PriorReport is an earlier report of the same student and subject handed to
// the generator as context.
type PriorReport struct {
	WeekStart     time.Time
	Answers       map[string]string
	Feedback      string
	ProgressScore *float64
}

type ReportContext struct {
	ReportID    uuid.UUID
	StudentName string
	Subject     string
	WeekStart   time.Time
	WeekEnd     time.Time
	Answers     map[string]string
	Previous    []PriorReport
}

type GeneratedFeedback struct {
	Content        string
	ProgressScore  float64
	Cost           float64
	RequiresReview bool
	Provider       string
}

type FeedbackGenerator interface {
	GenerateFeedback(ctx context.Context, rc ReportContext) (*GeneratedFeedback, error)
}

type ExamContext struct {
	StudentName string
	Subject     string
	ExamTopic   string
	Content     string
}

type GradedExam struct {
	Score        float64
	Feedback     string
	Cost         float64
	InputTokens  int
	OutputTokens int
	Provider     string
}

type ExamGrader interface {
	GradeExam(ctx context.Context, ec ExamContext) (*GradedExam, error)
}

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

const reviewScoreBelow = 50

// NeedsReview flags low scores, model-flagged output and near-empty content.
func NeedsReview(score float64, flagged bool, content string) bool {
	return score < reviewScoreBelow || flagged || len(strings.TrimSpace(content)) < 40
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// FallbackGenerator tries primary first and secondary when primary fails
// with any error, transient ones and an open circuit included.
type FallbackGenerator struct {
	primary   FeedbackGenerator
	secondary FeedbackGenerator
}

func NewFallbackGenerator(primary, secondary FeedbackGenerator) *FallbackGenerator {
	return &FallbackGenerator{primary: primary, secondary: secondary}
}

func (g *FallbackGenerator) GenerateFeedback(ctx context.Context, rc ReportContext) (*GeneratedFeedback, error) {
	if g.primary == nil && g.secondary == nil {
		return nil, errors.New("no AI provider configured")
	}
	if g.primary == nil {
		return g.secondary.GenerateFeedback(ctx, rc)
	}
	out, err := g.primary.GenerateFeedback(ctx, rc)
	if err == nil || g.secondary == nil || ctx.Err() != nil {
		return out, err
	}
	out, err2 := g.secondary.GenerateFeedback(ctx, rc)
	if err2 != nil {
		return nil, errors.Join(err, err2)
	}
	return out, nil
}

// FallbackGrader mirrors FallbackGenerator for exam grading.
type FallbackGrader struct {
	primary   ExamGrader
	secondary ExamGrader
}

func NewFallbackGrader(primary, secondary ExamGrader) *FallbackGrader {
	return &FallbackGrader{primary: primary, secondary: secondary}
}

func (g *FallbackGrader) GradeExam(ctx context.Context, ec ExamContext) (*GradedExam, error) {
	if g.primary == nil && g.secondary == nil {
		return nil, errors.New("no AI provider configured")
	}
	if g.primary == nil {
		return g.secondary.GradeExam(ctx, ec)
	}
	out, err := g.primary.GradeExam(ctx, ec)
	if err == nil || g.secondary == nil || ctx.Err() != nil {
		return out, err
	}
	out, err2 := g.secondary.GradeExam(ctx, ec)
	if err2 != nil {
		return nil, errors.Join(err, err2)
	}
	return out, nil
}
