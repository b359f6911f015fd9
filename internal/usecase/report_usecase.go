package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/dto"
	"github.com/intellego/platform/internal/logger"
	"github.com/intellego/platform/internal/model"
	"github.com/intellego/platform/internal/repository"
	"github.com/intellego/platform/internal/response"
	"github.com/intellego/platform/internal/service"
	"github.com/intellego/platform/internal/util"
)

// Weekly report questions. The first four are required.
var (
	ReportQuestions   = []string{"q1", "q2", "q3", "q4", "q5"}
	RequiredQuestions = []string{"q1", "q2", "q3", "q4"}
)

const maxAnswerLength = 5000

type SubmitInput struct {
	StudentID uuid.UUID
	Subject   string
	Answers   map[string]string
}

type ReportUsecase struct {
	reports  *repository.ReportRepository
	students *repository.StudentRepository
	archiver service.Archiver
	clock    util.Clock
	log      *logger.Logger
}

func NewReportUsecase(reports *repository.ReportRepository, students *repository.StudentRepository, archiver service.Archiver, clock util.Clock, log *logger.Logger) *ReportUsecase {
	return &ReportUsecase{reports: reports, students: students, archiver: archiver, clock: clock, log: log}
}

// CanSubmit reports whether the student has no report for subject in the
// current week window.
func (uc *ReportUsecase) CanSubmit(ctx context.Context, studentID uuid.UUID, subject string) (bool, error) {
	_, err := uc.reports.FindReport(ctx, studentID, subject, util.WeekStart(uc.clock.Now()))
	if errors.Is(err, apperror.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (uc *ReportUsecase) Submit(ctx context.Context, in SubmitInput) (*model.WeeklyReport, error) {
	subject := strings.TrimSpace(in.Subject)
	if in.StudentID == uuid.Nil {
		return nil, apperror.NewValidationError("student_id", "is required")
	}
	if subject == "" {
		return nil, apperror.NewValidationError("subject", "is required")
	}

	now := uc.clock.Now()
	week := util.WeekOf(now)

	student, err := uc.students.FindByID(ctx, in.StudentID)
	if err != nil {
		return nil, fmt.Errorf("student %s: %w", in.StudentID, err)
	}

	// Advisory; the unique index below is authoritative.
	ok, err := uc.CanSubmit(ctx, in.StudentID, subject)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.ErrAlreadySubmitted
	}
	if !student.IsEnrolled(subject) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrNotEnrolled, subject)
	}
	answers, err := validateAnswers(in.Answers)
	if err != nil {
		return nil, err
	}

	report := &model.WeeklyReport{
		StudentID:   in.StudentID,
		Subject:     subject,
		WeekStart:   week.Start,
		WeekEnd:     week.End,
		SubmittedAt: now,
	}
	for _, q := range ReportQuestions {
		report.Answers = append(report.Answers, model.ReportAnswer{QuestionID: q, Answer: answers[q]})
	}

	if err := uc.reports.InsertReport(ctx, report); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, apperror.ErrAlreadySubmitted
		}
		return nil, err
	}

	uc.log.Info("report submitted",
		"report_id", report.ID,
		"student_id", report.StudentID,
		"subject", report.Subject,
		"week_start", report.WeekStart,
	)
	uc.archive(ctx, student, report, answers)
	return report, nil
}

func (uc *ReportUsecase) archive(ctx context.Context, student *model.Student, r *model.WeeklyReport, answers map[string]string) {
	if uc.archiver == nil {
		return
	}
	where, err := uc.archiver.Archive(ctx, service.ArchivedReport{
		ReportID:    r.ID,
		StudentID:   r.StudentID,
		StudentName: student.Name,
		Subject:     r.Subject,
		WeekStart:   r.WeekStart,
		WeekEnd:     r.WeekEnd,
		SubmittedAt: r.SubmittedAt,
		Answers:     answers,
	})
	if err != nil {
		uc.log.Warn("report archive failed", "report_id", r.ID, "error", err)
		return
	}
	uc.log.Debug("report archived", "report_id", r.ID, "location", where)
}

func validateAnswers(in map[string]string) (map[string]string, error) {
	known := make(map[string]bool, len(ReportQuestions))
	for _, q := range ReportQuestions {
		known[q] = true
	}
	ids := make([]string, 0, len(in))
	for id := range in {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]string, len(ReportQuestions))
	for _, id := range ids {
		if !known[id] {
			return nil, apperror.NewValidationError("answers."+id, "unknown question")
		}
		v := strings.TrimSpace(in[id])
		if len(v) > maxAnswerLength {
			return nil, apperror.NewValidationError("answers."+id, fmt.Sprintf("must be at most %d characters", maxAnswerLength))
		}
		out[id] = v
	}
	for _, q := range RequiredQuestions {
		if out[q] == "" {
			return nil, apperror.NewValidationError("answers."+q, "is required")
		}
	}
	return out, nil
}

// Overview lists a student's reports with per-subject eligibility for the
// current week.
func (uc *ReportUsecase) Overview(ctx context.Context, studentID uuid.UUID, subject string, page, pageSize int) (*dto.ReportOverviewDTO, *response.Pagination, error) {
	page, pageSize = normalizePage(page, pageSize)
	subjects, err := uc.students.GetSubjects(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	reports, total, err := uc.reports.ListByStudent(ctx, studentID, subject, page, pageSize)
	if err != nil {
		return nil, nil, err
	}

	week := util.WeekOf(uc.clock.Now())
	out := &dto.ReportOverviewDTO{
		Subjects:           subjects,
		Reports:            make([]dto.ReportDTO, 0, len(reports)),
		CanSubmitBySubject: make(map[string]bool, len(subjects)),
		CurrentWeek:        dto.WeekDTO{Start: week.Start, End: week.End},
	}
	for _, s := range subjects {
		ok, err := uc.CanSubmit(ctx, studentID, s)
		if err != nil {
			return nil, nil, err
		}
		out.CanSubmitBySubject[s] = ok
	}
	for i := range reports {
		out.Reports = append(out.Reports, ToReportDTO(&reports[i]))
	}
	return out, response.NewPagination(page, pageSize, total), nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = 10
	case pageSize > 100:
		pageSize = 100
	}
	return page, pageSize
}

func ToReportDTO(r *model.WeeklyReport) dto.ReportDTO {
	status := model.FeedbackNone
	if r.Feedback != nil {
		status = r.Feedback.Status
	}
	return dto.ReportDTO{
		ID:             r.ID,
		StudentID:      r.StudentID,
		Subject:        r.Subject,
		WeekStart:      r.WeekStart,
		WeekEnd:        r.WeekEnd,
		SubmittedAt:    r.SubmittedAt,
		Answers:        r.AnswerMap(),
		FeedbackStatus: string(status),
	}
}
