package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/dto"
	"github.com/intellego/platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackLifecycleToSent(t *testing.T) {
	e := newEnv(t)
	e.generator.score = 45
	ctx := context.Background()
	instructor := uuid.New()
	r := e.submit(t, e.student(t, "García, Juan", "Física"), "Física")

	f, err := e.lifecycle.Generate(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackAIGenerated, f.Status)
	require.NotNil(t, f.ProgressScore)
	assert.Equal(t, 45.0, *f.ProgressScore)
	assert.True(t, f.RequiresReview)

	f, err = e.lifecycle.Approve(ctx, r.ID, instructor)
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackApproved, f.Status)
	require.NotNil(t, f.ReviewedBy)
	assert.Equal(t, instructor, *f.ReviewedBy)
	assert.True(t, f.ReviewedAt.Equal(midweek))

	f, err = e.lifecycle.MarkSent(ctx, r.ID, instructor)
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackSent, f.Status)
	assert.NotNil(t, f.SentAt)

	_, err = e.lifecycle.MarkSent(ctx, r.ID, instructor)
	assert.ErrorIs(t, err, apperror.ErrNotApproved)
	var te *apperror.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Empty(t, te.Allowed)
}

func TestOnlyGenerateFromNone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.submit(t, e.student(t, "García, Juan", "Física"), "Física")

	for _, action := range []string{ActionApprove, ActionRequestChanges, ActionUpdateContent, ActionMarkSent, ActionSend} {
		_, err := e.lifecycle.Apply(ctx, r.ID, uuid.New(), dto.FeedbackActionRequest{
			Action:          action,
			InstructorNotes: "más detalle",
			ModifiedContent: "texto nuevo",
		})
		var te *apperror.TransitionError
		require.ErrorAs(t, err, &te, action)
		assert.Equal(t, []string{ActionGenerate}, te.Allowed)
	}

	view, err := e.lifecycle.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackNone, view.Status)
	assert.Nil(t, view.Feedback)
}

func TestSentIsTerminal(t *testing.T) {
	assert.Empty(t, ValidActions(model.FeedbackSent))
	assert.Equal(t, []string{ActionGenerate}, ValidActions(model.FeedbackNone))
}

func TestGenerateTwiceIsAlreadyGenerated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.submit(t, e.student(t, "García, Juan", "Física"), "Física")

	_, err := e.lifecycle.Generate(ctx, r.ID)
	require.NoError(t, err)
	_, err = e.lifecycle.Generate(ctx, r.ID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyGenerated)
	assert.Equal(t, 1, e.generator.calls[r.ID])
}

func TestGenerateUnknownReport(t *testing.T) {
	e := newEnv(t)
	_, err := e.lifecycle.Generate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = e.lifecycle.Approve(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGeneratorErrorKeepsStateNone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.submit(t, e.student(t, "García, Juan", "Física"), "Física")
	e.generator.fail[r.ID] = transient()

	_, err := e.lifecycle.Generate(ctx, r.ID)
	assert.True(t, apperror.IsTransient(err))

	view, err := e.lifecycle.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackNone, view.Status)
}

func TestReviewPath(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	instructor := uuid.New()
	r := e.submit(t, e.student(t, "García, Juan", "Física"), "Física")
	generated, err := e.lifecycle.Generate(ctx, r.ID)
	require.NoError(t, err)

	_, err = e.lifecycle.RequestChanges(ctx, r.ID, instructor, "  ")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	f, err := e.lifecycle.RequestChanges(ctx, r.ID, instructor, "Agregá ejemplos")
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackUnderReview, f.Status)
	assert.Equal(t, "Agregá ejemplos", f.InstructorNotes)
	assert.Equal(t, generated.Content, f.Content)
	assert.False(t, f.ModifiedByInstructor)

	// request_changes is only valid straight after generation.
	_, err = e.lifecycle.RequestChanges(ctx, r.ID, instructor, "otra vez")
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	f, err = e.lifecycle.EditContent(ctx, r.ID, instructor, "Muy buen trabajo, sumá ejemplos de la vida diaria.", "")
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackUnderReview, f.Status)
	assert.True(t, f.ModifiedByInstructor)
	assert.Equal(t, "Agregá ejemplos", f.InstructorNotes)
	assert.Equal(t, generated.Version+2, f.Version)

	f, err = e.lifecycle.Approve(ctx, r.ID, instructor)
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackApproved, f.Status)

	_, err = e.lifecycle.EditContent(ctx, r.ID, instructor, "tarde", "")
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestEditContentStraightFromGenerated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.submit(t, e.student(t, "García, Juan", "Física"), "Física")
	_, err := e.lifecycle.Generate(ctx, r.ID)
	require.NoError(t, err)

	f, err := e.lifecycle.EditContent(ctx, r.ID, uuid.New(), "Contenido corregido", "")
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackUnderReview, f.Status)
	assert.Equal(t, "Contenido corregido", f.Content)
}

func TestSendDeliversThenMarksSent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	instructor := uuid.New()
	s := e.student(t, "García, Juan", "Física")
	r := e.submit(t, s, "Física")
	_, err := e.lifecycle.Generate(ctx, r.ID)
	require.NoError(t, err)

	_, err = e.lifecycle.Send(ctx, r.ID, instructor)
	assert.ErrorIs(t, err, apperror.ErrNotApproved)
	assert.Empty(t, e.sender.sent)

	_, err = e.lifecycle.Approve(ctx, r.ID, instructor)
	require.NoError(t, err)

	e.sender.err = errors.New("smtp down")
	_, err = e.lifecycle.Send(ctx, r.ID, instructor)
	assert.ErrorIs(t, err, apperror.ErrDelivery)
	view, err := e.lifecycle.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackApproved, view.Status)

	e.sender.err = nil
	f, err := e.lifecycle.Send(ctx, r.ID, instructor)
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackSent, f.Status)
	assert.Equal(t, []string{s.Email}, e.sender.sent)
}

func TestStaleApproveIsConflict(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.submit(t, e.student(t, "García, Juan", "Física"), "Física")
	_, err := e.lifecycle.Generate(ctx, r.ID)
	require.NoError(t, err)

	stale, err := e.feedback.FindByReportID(ctx, r.ID)
	require.NoError(t, err)
	_, err = e.lifecycle.Approve(ctx, r.ID, uuid.New())
	require.NoError(t, err)

	// A writer still holding the old version loses.
	err = e.feedback.UpdateVersioned(ctx, stale, map[string]any{"status": model.FeedbackApproved})
	assert.Error(t, err)

	_, err = e.lifecycle.Approve(ctx, r.ID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestUnknownAction(t *testing.T) {
	e := newEnv(t)
	_, err := e.lifecycle.Apply(context.Background(), uuid.New(), uuid.New(), dto.FeedbackActionRequest{Action: "publish"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
