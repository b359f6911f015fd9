package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/dto"
	"github.com/intellego/platform/internal/logger"
	"github.com/intellego/platform/internal/matcher"
	"github.com/intellego/platform/internal/model"
	"github.com/intellego/platform/internal/repository"
	"github.com/intellego/platform/internal/service"
	"github.com/intellego/platform/internal/util"
	"gorm.io/datatypes"
)

type UploadInput struct {
	FileName     string
	Path         string
	Subject      string
	Division     string
	AcademicYear string
	Campus       string
	ExamTopic    string
	ExamDate     time.Time
	Preview      bool
	// StudentID skips matching when the instructor already confirmed who
	// wrote the exam.
	StudentID    *uuid.UUID
	InstructorID uuid.UUID
}

type UploadResult struct {
	Evaluation *model.Evaluation
	Student    model.Student
	Match      matcher.Result
	Preview    bool
}

type EvaluationUsecase struct {
	evaluations *repository.EvaluationRepository
	students    *repository.StudentRepository
	grader      service.ExamGrader
	matcher     *matcher.Matcher
	preview     *matcher.Matcher
	extract     func(path string) (string, error)
	clock       util.Clock
	log         *logger.Logger
}

func NewEvaluationUsecase(
	evaluations *repository.EvaluationRepository,
	students *repository.StudentRepository,
	grader service.ExamGrader,
	production, preview *matcher.Matcher,
	clock util.Clock,
	log *logger.Logger,
) *EvaluationUsecase {
	return &EvaluationUsecase{
		evaluations: evaluations,
		students:    students,
		grader:      grader,
		matcher:     production,
		preview:     preview,
		extract:     func(path string) (string, error) { return util.ExtractText(path, log) },
		clock:       clock,
		log:         log,
	}
}

func (in UploadInput) validate() error {
	switch {
	case strings.TrimSpace(in.FileName) == "":
		return apperror.NewValidationError("file", "is required")
	case strings.TrimSpace(in.Subject) == "":
		return apperror.NewValidationError("subject", "is required")
	case strings.TrimSpace(in.ExamTopic) == "":
		return apperror.NewValidationError("exam_topic", "is required")
	case in.ExamDate.IsZero():
		return apperror.NewValidationError("exam_date", "is required")
	}
	return nil
}

// Upload binds an exam file to a student, grades it and stores the result.
// Preview uploads use the looser threshold and are never stored. A
// low-confidence match is returned as *matcher.LowConfidenceError so the
// caller can confirm the best candidate with StudentID.
func (uc *EvaluationUsecase) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	mctx := matcher.Context{
		Subject:      in.Subject,
		Division:     in.Division,
		AcademicYear: in.AcademicYear,
		Campus:       in.Campus,
	}
	pool, err := uc.students.ListEnrolled(ctx, repository.EnrollmentFilter{
		Subject:      in.Subject,
		Division:     in.Division,
		AcademicYear: in.AcademicYear,
		Campus:       in.Campus,
	})
	if err != nil {
		return nil, err
	}

	match, err := uc.bind(in, mctx, pool)
	if err != nil {
		return nil, err
	}

	content, err := uc.extract(in.Path)
	if err != nil {
		return nil, apperror.NewValidationError("file", err.Error())
	}

	graded, err := uc.grader.GradeExam(ctx, service.ExamContext{
		StudentName: match.Student.Name,
		Subject:     in.Subject,
		ExamTopic:   in.ExamTopic,
		Content:     content,
	})
	if err != nil {
		return nil, fmt.Errorf("grade exam: %w", err)
	}

	usage, err := json.Marshal(map[string]any{
		"provider":      graded.Provider,
		"input_tokens":  graded.InputTokens,
		"output_tokens": graded.OutputTokens,
		"cost":          graded.Cost,
	})
	if err != nil {
		return nil, err
	}
	eval := &model.Evaluation{
		StudentID:       match.Student.ID,
		Subject:         in.Subject,
		ExamTopic:       in.ExamTopic,
		ExamDate:        in.ExamDate,
		Score:           graded.Score,
		Feedback:        graded.Feedback,
		SourceFile:      in.FileName,
		MatchConfidence: match.Confidence,
		CreatedBy:       in.InstructorID,
		APICost:         graded.Cost,
		Usage:           datatypes.JSON(usage),
	}

	result := &UploadResult{Evaluation: eval, Student: match.Student, Match: match, Preview: in.Preview}
	if in.Preview {
		return result, nil
	}
	if err := uc.evaluations.Create(ctx, eval); err != nil {
		return nil, err
	}
	uc.log.Info("evaluation stored",
		"evaluation_id", eval.ID,
		"student_id", eval.StudentID,
		"score", eval.Score,
		"confidence", match.Confidence,
	)
	return result, nil
}

func (uc *EvaluationUsecase) bind(in UploadInput, mctx matcher.Context, pool []model.Student) (matcher.Result, error) {
	if in.StudentID != nil {
		for _, s := range pool {
			if s.ID == *in.StudentID {
				return matcher.Result{Student: s, Confidence: 100}, nil
			}
		}
		return matcher.Result{}, fmt.Errorf("student %s in this course: %w", *in.StudentID, apperror.ErrNotFound)
	}
	m := uc.matcher
	if in.Preview {
		m = uc.preview
	}
	res, err := m.Match(in.FileName, mctx, pool)
	if err != nil {
		return matcher.Result{}, err
	}
	if res.Ambiguous {
		uc.log.Warn("ambiguous evaluation match", "file", in.FileName, "student", res.Student.Name, "confidence", res.Confidence)
	}
	return res, nil
}

func (uc *EvaluationUsecase) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.Evaluation, error) {
	return uc.evaluations.ListByStudent(ctx, studentID)
}

// Correct applies an instructor's manual score or feedback change.
func (uc *EvaluationUsecase) Correct(ctx context.Context, id, instructorID uuid.UUID, req dto.CorrectEvaluationRequest) (*model.Evaluation, error) {
	if req.Score == nil && req.Feedback == nil {
		return nil, apperror.NewValidationError("score", "score or feedback is required")
	}
	if req.Score != nil && (*req.Score < 0 || *req.Score > 100) {
		return nil, apperror.NewValidationError("score", "must be between 0 and 100")
	}

	eval, err := uc.evaluations.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("evaluation %s: %w", id, err)
	}
	if req.Score != nil {
		eval.Score = *req.Score
	}
	if req.Feedback != nil {
		eval.Feedback = *req.Feedback
	}
	now := uc.clock.Now()
	eval.CorrectedBy = &instructorID
	eval.CorrectedAt = &now
	if err := uc.evaluations.Update(ctx, eval); err != nil {
		return nil, err
	}
	return eval, nil
}

func ToEvaluationDTO(e *model.Evaluation, studentName string) dto.EvaluationDTO {
	return dto.EvaluationDTO{
		ID:              e.ID,
		StudentID:       e.StudentID,
		StudentName:     studentName,
		Subject:         e.Subject,
		ExamTopic:       e.ExamTopic,
		ExamDate:        e.ExamDate,
		Score:           e.Score,
		Feedback:        e.Feedback,
		MatchConfidence: e.MatchConfidence,
		APICost:         e.APICost,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

// LowConfidenceCandidate exposes the best guess of a rejected match.
func LowConfidenceCandidate(err error) (*dto.MatchCandidateDTO, bool) {
	lc, ok := matcher.AsLowConfidence(err)
	if !ok {
		return nil, false
	}
	return &dto.MatchCandidateDTO{
		StudentID:  lc.Best.Student.ID,
		Name:       lc.Best.Student.Name,
		Confidence: lc.Best.Confidence,
		Ambiguous:  lc.Best.Ambiguous,
	}, true
}
