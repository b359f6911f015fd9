package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/dto"
	"github.com/intellego/platform/internal/logger"
	"github.com/intellego/platform/internal/model"
	"github.com/intellego/platform/internal/repository"
	"github.com/intellego/platform/internal/service"
	"github.com/intellego/platform/internal/util"
)

const (
	ActionGenerate       = "generate"
	ActionApprove        = "approve"
	ActionRequestChanges = "request_changes"
	ActionUpdateContent  = "update_content"
	ActionMarkSent       = "mark_sent"
	ActionSend           = "send"
)

var transitions = map[model.FeedbackStatus][]string{
	model.FeedbackNone:        {ActionGenerate},
	model.FeedbackAIGenerated: {ActionApprove, ActionRequestChanges, ActionUpdateContent},
	model.FeedbackUnderReview: {ActionApprove, ActionUpdateContent},
	model.FeedbackApproved:    {ActionMarkSent, ActionSend},
	model.FeedbackSent:        {},
}

// ValidActions lists the actions allowed from status. Sent is terminal.
func ValidActions(status model.FeedbackStatus) []string {
	return append([]string{}, transitions[status]...)
}

func allowed(status model.FeedbackStatus, action string) bool {
	for _, a := range transitions[status] {
		if a == action {
			return true
		}
	}
	return false
}

// FeedbackView is a report's feedback along with what may happen next. Feedback
// is nil while the report is in state none.
type FeedbackView struct {
	ReportID       uuid.UUID            `json:"report_id"`
	Status         model.FeedbackStatus `json:"status"`
	Feedback       *model.Feedback      `json:"feedback,omitempty"`
	AllowedActions []string             `json:"allowed_actions"`
}

type FeedbackUsecase struct {
	reports   *repository.ReportRepository
	feedback  *repository.FeedbackRepository
	students  *repository.StudentRepository
	generator service.FeedbackGenerator
	sender    service.EmailSender
	prior     PriorContext
	clock     util.Clock
	log       *logger.Logger
}

func NewFeedbackUsecase(
	reports *repository.ReportRepository,
	feedback *repository.FeedbackRepository,
	students *repository.StudentRepository,
	generator service.FeedbackGenerator,
	sender service.EmailSender,
	prior PriorContext,
	clock util.Clock,
	log *logger.Logger,
) *FeedbackUsecase {
	return &FeedbackUsecase{
		reports:   reports,
		feedback:  feedback,
		students:  students,
		generator: generator,
		sender:    sender,
		prior:     prior,
		clock:     clock,
		log:       log,
	}
}

// load returns the report's feedback, or nil when the report exists without
// one.
func (uc *FeedbackUsecase) load(ctx context.Context, reportID uuid.UUID) (*model.Feedback, error) {
	f, err := uc.feedback.FindByReportID(ctx, reportID)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}
	if _, err := uc.reports.FindByID(ctx, reportID); err != nil {
		return nil, fmt.Errorf("report %s: %w", reportID, err)
	}
	return nil, nil
}

func statusOf(f *model.Feedback) model.FeedbackStatus {
	if f == nil {
		return model.FeedbackNone
	}
	return f.Status
}

func transitionError(from model.FeedbackStatus, action string) error {
	var cause error
	switch action {
	case ActionGenerate:
		cause = apperror.ErrAlreadyGenerated
	case ActionMarkSent, ActionSend:
		cause = apperror.ErrNotApproved
	}
	return apperror.NewTransitionError(string(from), action, ValidActions(from), cause)
}

func (uc *FeedbackUsecase) Get(ctx context.Context, reportID uuid.UUID) (*FeedbackView, error) {
	f, err := uc.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	status := statusOf(f)
	return &FeedbackView{ReportID: reportID, Status: status, Feedback: f, AllowedActions: ValidActions(status)}, nil
}

// Generate asks the AI provider for feedback on a report that has none yet.
func (uc *FeedbackUsecase) Generate(ctx context.Context, reportID uuid.UUID) (*model.Feedback, error) {
	report, err := uc.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", reportID, err)
	}
	if report.Feedback != nil {
		return nil, transitionError(report.Feedback.Status, ActionGenerate)
	}

	rc := service.ReportContext{
		ReportID:  report.ID,
		Subject:   report.Subject,
		WeekStart: report.WeekStart,
		WeekEnd:   report.WeekEnd,
		Answers:   report.AnswerMap(),
	}
	if student, err := uc.students.FindByID(ctx, report.StudentID); err == nil {
		rc.StudentName = student.Name
	}
	if uc.prior != nil {
		previous, err := uc.prior.Related(ctx, report)
		if err != nil {
			uc.log.Warn("prior context unavailable", "report_id", report.ID, "error", err)
		}
		for i := range previous {
			p := &previous[i]
			pr := service.PriorReport{WeekStart: p.WeekStart, Answers: p.AnswerMap()}
			if p.Feedback != nil {
				pr.Feedback = p.Feedback.Content
				pr.ProgressScore = p.Feedback.ProgressScore
			}
			rc.Previous = append(rc.Previous, pr)
		}
	}

	out, err := uc.generator.GenerateFeedback(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("generate feedback for report %s: %w", report.ID, err)
	}

	score := out.ProgressScore
	f := &model.Feedback{
		ReportID:       report.ID,
		StudentID:      report.StudentID,
		Subject:        report.Subject,
		Status:         model.FeedbackAIGenerated,
		Content:        out.Content,
		ProgressScore:  &score,
		RequiresReview: out.RequiresReview || service.NeedsReview(score, false, out.Content),
		Provider:       out.Provider,
		Cost:           out.Cost,
		Version:        1,
	}
	if err := uc.feedback.Create(ctx, f); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, transitionError(model.FeedbackAIGenerated, ActionGenerate)
		}
		return nil, err
	}

	uc.log.Info("feedback generated",
		"report_id", report.ID,
		"provider", f.Provider,
		"progress_score", score,
		"requires_review", f.RequiresReview,
		"cost", f.Cost,
	)
	return f, nil
}

// apply moves f to the next state when action is allowed, guarded by the
// row version.
func (uc *FeedbackUsecase) apply(ctx context.Context, reportID uuid.UUID, action string, fields func(f *model.Feedback) map[string]any) (*model.Feedback, error) {
	f, err := uc.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	from := statusOf(f)
	if f == nil || !allowed(from, action) {
		return nil, transitionError(from, action)
	}

	if err := uc.feedback.UpdateVersioned(ctx, f, fields(f)); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, fmt.Errorf("feedback %s: %w", f.ID, apperror.ErrConflict)
		}
		return nil, err
	}

	updated, err := uc.feedback.FindByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	uc.log.Info("feedback transition", "report_id", reportID, "action", action, "from", from, "to", updated.Status)
	return updated, nil
}

func (uc *FeedbackUsecase) Approve(ctx context.Context, reportID, instructorID uuid.UUID) (*model.Feedback, error) {
	now := uc.clock.Now()
	return uc.apply(ctx, reportID, ActionApprove, func(*model.Feedback) map[string]any {
		return map[string]any{
			"status":      model.FeedbackApproved,
			"reviewed_by": instructorID,
			"reviewed_at": now,
		}
	})
}

func (uc *FeedbackUsecase) RequestChanges(ctx context.Context, reportID, instructorID uuid.UUID, notes string) (*model.Feedback, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, apperror.NewValidationError("instructor_notes", "is required")
	}
	now := uc.clock.Now()
	return uc.apply(ctx, reportID, ActionRequestChanges, func(*model.Feedback) map[string]any {
		return map[string]any{
			"status":           model.FeedbackUnderReview,
			"instructor_notes": notes,
			"last_modified_by": instructorID,
			"last_modified_at": now,
		}
	})
}

func (uc *FeedbackUsecase) EditContent(ctx context.Context, reportID, instructorID uuid.UUID, content, notes string) (*model.Feedback, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.NewValidationError("modified_content", "is required")
	}
	now := uc.clock.Now()
	return uc.apply(ctx, reportID, ActionUpdateContent, func(*model.Feedback) map[string]any {
		fields := map[string]any{
			"status":                 model.FeedbackUnderReview,
			"content":                content,
			"modified_by_instructor": true,
			"last_modified_by":       instructorID,
			"last_modified_at":       now,
		}
		if n := strings.TrimSpace(notes); n != "" {
			fields["instructor_notes"] = n
		}
		return fields
	})
}

func (uc *FeedbackUsecase) MarkSent(ctx context.Context, reportID, instructorID uuid.UUID) (*model.Feedback, error) {
	now := uc.clock.Now()
	return uc.apply(ctx, reportID, ActionMarkSent, func(*model.Feedback) map[string]any {
		return map[string]any{
			"status":  model.FeedbackSent,
			"sent_by": instructorID,
			"sent_at": now,
		}
	})
}

// Send emails approved feedback to the student and then marks it sent. A
// failed delivery leaves the feedback approved.
func (uc *FeedbackUsecase) Send(ctx context.Context, reportID, instructorID uuid.UUID) (*model.Feedback, error) {
	f, err := uc.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if from := statusOf(f); !allowed(from, ActionSend) {
		return nil, transitionError(from, ActionSend)
	}
	if uc.sender == nil {
		return nil, fmt.Errorf("%w: no email sender configured", apperror.ErrDelivery)
	}

	report, err := uc.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	student, err := uc.students.FindByID(ctx, report.StudentID)
	if err != nil {
		return nil, fmt.Errorf("student %s: %w", report.StudentID, err)
	}

	res, err := uc.sender.Send(ctx, service.TemplateFeedback, student.Email, service.FeedbackEmailData{
		StudentName:   student.Name,
		Subject:       report.Subject,
		WeekStart:     report.WeekStart,
		WeekEnd:       report.WeekEnd,
		Content:       f.Content,
		ProgressScore: f.ProgressScore,
	})
	if err != nil {
		uc.log.Error("feedback email failed", "report_id", reportID, "error", err)
		return nil, fmt.Errorf("%w: %v", apperror.ErrDelivery, err)
	}
	uc.log.Info("feedback email delivered", "report_id", reportID, "message_id", res.MessageID)
	return uc.MarkSent(ctx, reportID, instructorID)
}

// Apply dispatches an instructor action by name.
func (uc *FeedbackUsecase) Apply(ctx context.Context, reportID, instructorID uuid.UUID, req dto.FeedbackActionRequest) (*model.Feedback, error) {
	switch req.Action {
	case ActionGenerate:
		return uc.Generate(ctx, reportID)
	case ActionApprove:
		return uc.Approve(ctx, reportID, instructorID)
	case ActionRequestChanges:
		return uc.RequestChanges(ctx, reportID, instructorID, req.InstructorNotes)
	case ActionUpdateContent:
		return uc.EditContent(ctx, reportID, instructorID, req.ModifiedContent, req.InstructorNotes)
	case ActionMarkSent:
		return uc.MarkSent(ctx, reportID, instructorID)
	case ActionSend:
		return uc.Send(ctx, reportID, instructorID)
	default:
		return nil, apperror.NewValidationError("action", fmt.Sprintf("unknown action %q", req.Action))
	}
}
