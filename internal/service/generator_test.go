package service

import (
	"context"
	"errors"
	"testing"

	"github.com/intellego/platform/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	out   *GeneratedFeedback
	err   error
	calls int
}

func (s *stubGenerator) GenerateFeedback(ctx context.Context, rc ReportContext) (*GeneratedFeedback, error) {
	s.calls++
	return s.out, s.err
}

func TestFallbackGeneratorUsesSecondaryOnFailure(t *testing.T) {
	primary := &stubGenerator{err: apperror.NewTransientError(errors.New("503"), "gemini down")}
	secondary := &stubGenerator{out: &GeneratedFeedback{Content: "ok", Provider: "openrouter"}}

	out, err := NewFallbackGenerator(primary, secondary).GenerateFeedback(context.Background(), ReportContext{})
	require.NoError(t, err)
	assert.Equal(t, "openrouter", out.Provider)
	assert.Equal(t, 1, primary.calls)
}

func TestFallbackGeneratorSkipsSecondaryOnSuccess(t *testing.T) {
	primary := &stubGenerator{out: &GeneratedFeedback{Provider: "gemini"}}
	secondary := &stubGenerator{}

	_, err := NewFallbackGenerator(primary, secondary).GenerateFeedback(context.Background(), ReportContext{})
	require.NoError(t, err)
	assert.Zero(t, secondary.calls)
}

func TestFallbackGeneratorKeepsTransientMarker(t *testing.T) {
	primary := &stubGenerator{err: apperror.NewTransientError(errors.New("429"), "rate limited")}
	secondary := &stubGenerator{err: errors.New("bad request")}

	_, err := NewFallbackGenerator(primary, secondary).GenerateFeedback(context.Background(), ReportContext{})
	require.Error(t, err)
	assert.True(t, apperror.IsTransient(err))
}

func TestFallbackGeneratorWithoutProviders(t *testing.T) {
	_, err := NewFallbackGenerator(nil, nil).GenerateFeedback(context.Background(), ReportContext{})
	assert.Error(t, err)
}

func TestNeedsReview(t *testing.T) {
	long := "Buen trabajo esta semana, se nota el avance en los ejercicios."
	assert.True(t, NeedsReview(45, false, long))
	assert.False(t, NeedsReview(50, false, long))
	assert.True(t, NeedsReview(90, true, long))
	assert.True(t, NeedsReview(90, false, "ok"))
}

func TestFallbackGeneratorCoversOpenCircuit(t *testing.T) {
	primary := &stubGenerator{err: apperror.NewTransientError(errors.New("too many consecutive errors (5)"), "circuit breaker open")}
	secondary := &stubGenerator{out: &GeneratedFeedback{Content: "ok", Provider: "openrouter"}}

	out, err := NewFallbackGenerator(primary, secondary).GenerateFeedback(context.Background(), ReportContext{})
	require.NoError(t, err)
	assert.Equal(t, "openrouter", out.Provider)
	assert.Equal(t, 1, secondary.calls)
}
