package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/intellego/platform/internal/config"
	"github.com/intellego/platform/internal/database"
	"github.com/intellego/platform/internal/logger"
	"github.com/intellego/platform/internal/matcher"
	"github.com/intellego/platform/internal/middleware"
	"github.com/intellego/platform/internal/model"
	"github.com/intellego/platform/internal/queue"
	"github.com/intellego/platform/internal/repository"
	"github.com/intellego/platform/internal/service"
	"github.com/intellego/platform/internal/usecase"
	"github.com/intellego/platform/internal/util"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type stubGenerator struct{}

func (stubGenerator) GenerateFeedback(ctx context.Context, rc service.ReportContext) (*service.GeneratedFeedback, error) {
	return &service.GeneratedFeedback{
		Content:       "Muy buen avance con " + rc.Subject + ", seguí practicando los ejercicios.",
		ProgressScore: 72,
		Provider:      "stub",
	}, nil
}

type stubSender struct{}

func (stubSender) Send(ctx context.Context, templateName, recipient string, data any) (*service.DeliveryResult, error) {
	return &service.DeliveryResult{MessageID: "m-1", Accepted: true}, nil
}

type stubGrader struct{}

func (stubGrader) GradeExam(ctx context.Context, ec service.ExamContext) (*service.GradedExam, error) {
	return &service.GradedExam{Score: 65, Feedback: "Planteo correcto, revisar unidades", Provider: "stub"}, nil
}

type testServer struct {
	app        *fiber.App
	students   *repository.StudentRepository
	batch      *usecase.BatchUsecase
	uploadDir  string
	instructor uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	log := logger.Nop()
	// Wednesday 2025-08-06 12:00 in Argentina.
	clock := util.NewFixedClock(time.Date(2025, 8, 6, 15, 0, 0, 0, time.UTC))
	students := repository.NewStudentRepository(db)
	reports := repository.NewReportRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	evals := repository.NewEvaluationRepository(db)

	reportUC := usecase.NewReportUsecase(reports, students, service.NewLocalArchiver(t.TempDir()), clock, log)
	feedbackUC := usecase.NewFeedbackUsecase(reports, feedbackRepo, students, stubGenerator{}, stubSender{}, usecase.NewRecentReports(reports), clock, log)
	batchUC := usecase.NewBatchUsecase(reports, feedbackUC, queue.NewMemoryJobStore(), &config.BatchConfig{MaxConcurrent: 2}, clock, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		batchUC.Shutdown(ctx)
	})
	evalUC := usecase.NewEvaluationUsecase(evals, students, stubGrader{},
		matcher.New(matcher.ProductionConfig()), matcher.New(matcher.PreviewConfig()), clock, log)

	app := fiber.New()
	NewReportHandler(reportUC).RegisterRoutes(app)
	NewFeedbackHandler(feedbackUC).RegisterRoutes(app)
	NewBatchHandler(batchUC).RegisterRoutes(app)
	uploadDir := t.TempDir()
	NewEvaluationHandler(evalUC, uploadDir, log).RegisterRoutes(app)

	return &testServer{app: app, students: students, batch: batchUC, uploadDir: uploadDir, instructor: uuid.New()}
}

func (s *testServer) student(t *testing.T, name string, subjects ...string) *model.Student {
	t.Helper()
	st := &model.Student{
		Name:         name,
		Email:        uuid.NewString() + "@intellego.test",
		Role:         model.RoleStudent,
		Status:       model.StatusActive,
		Subjects:     subjects,
		Division:     "C",
		AcademicYear: "4to Año",
		Campus:       "Colegiales",
	}
	require.NoError(t, s.students.Create(context.Background(), st))
	return st
}

func (s *testServer) instructorHeaders() map[string]string {
	return map[string]string{
		middleware.HeaderUserRole: model.RoleInstructor,
		middleware.HeaderUserID:   s.instructor.String(),
	}
}

func (s *testServer) send(t *testing.T, req *http.Request, headers map[string]string) (int, gjson.Result) {
	t.Helper()
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, gjson.ParseBytes(raw)
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (int, gjson.Result) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return s.send(t, req, headers)
}

func (s *testServer) upload(t *testing.T, filename, content string, fields map[string]string) (int, gjson.Result) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/evaluations", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return s.send(t, req, s.instructorHeaders())
}

func reportBody(studentID uuid.UUID, subject string) map[string]any {
	return map[string]any{
		"student_id": studentID,
		"subject":    subject,
		"answers": map[string]string{
			"q1": "Cinemática, lo entiendo bastante bien",
			"q2": "Resolví la guía de MRUV",
			"q3": "Me cuesta despejar fórmulas",
			"q4": "Lo relacioné con el frenado de un auto",
		},
	}
}
