package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/config"
	"github.com/intellego/platform/internal/database"
	"github.com/intellego/platform/internal/logger"
	"github.com/intellego/platform/internal/model"
	"github.com/intellego/platform/internal/queue"
	"github.com/intellego/platform/internal/repository"
	"github.com/intellego/platform/internal/service"
	"github.com/intellego/platform/internal/util"
	"github.com/stretchr/testify/require"
)

// Wednesday 2025-08-06 12:00 in Argentina.
var midweek = time.Date(2025, 8, 6, 15, 0, 0, 0, time.UTC)

type fakeGenerator struct {
	mu    sync.Mutex
	calls map[uuid.UUID]int
	score float64
	fail  map[uuid.UUID]error
}

func newFakeGenerator(score float64) *fakeGenerator {
	return &fakeGenerator{calls: map[uuid.UUID]int{}, fail: map[uuid.UUID]error{}, score: score}
}

func (g *fakeGenerator) GenerateFeedback(ctx context.Context, rc service.ReportContext) (*service.GeneratedFeedback, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[rc.ReportID]++
	if err, ok := g.fail[rc.ReportID]; ok {
		return nil, err
	}
	content := "Buen trabajo esta semana, se nota el avance en los ejercicios de " + rc.Subject + "."
	return &service.GeneratedFeedback{
		Content:        content,
		ProgressScore:  g.score,
		Cost:           0.01,
		RequiresReview: service.NeedsReview(g.score, false, content),
		Provider:       "fake",
	}, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *fakeSender) Send(ctx context.Context, templateName, recipient string, data any) (*service.DeliveryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, recipient)
	return &service.DeliveryResult{MessageID: "m", Accepted: true}, nil
}

type env struct {
	clock     *util.FixedClock
	students  *repository.StudentRepository
	reports   *repository.ReportRepository
	feedback  *repository.FeedbackRepository
	generator *fakeGenerator
	sender    *fakeSender
	archive   string
	report    *ReportUsecase
	lifecycle *FeedbackUsecase
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	e := &env{
		clock:     util.NewFixedClock(midweek),
		students:  repository.NewStudentRepository(db),
		reports:   repository.NewReportRepository(db),
		feedback:  repository.NewFeedbackRepository(db),
		generator: newFakeGenerator(80),
		sender:    &fakeSender{},
		archive:   t.TempDir(),
	}
	log := logger.Nop()
	e.report = NewReportUsecase(e.reports, e.students, service.NewLocalArchiver(e.archive), e.clock, log)
	e.lifecycle = NewFeedbackUsecase(e.reports, e.feedback, e.students, e.generator, e.sender, NewRecentReports(e.reports), e.clock, log)
	return e
}

func (e *env) student(t *testing.T, name string, subjects ...string) *model.Student {
	t.Helper()
	s := &model.Student{
		Name:         name,
		Email:        uuid.NewString() + "@intellego.test",
		Role:         model.RoleStudent,
		Status:       model.StatusActive,
		Subjects:     subjects,
		Division:     "C",
		AcademicYear: "4to Año",
		Campus:       "Colegiales",
	}
	require.NoError(t, e.students.Create(context.Background(), s))
	return s
}

func answers() map[string]string {
	return map[string]string{
		"q1": "Cinemática, lo entiendo bastante bien",
		"q2": "Resolví la guía de MRUV",
		"q3": "Me cuesta despejar fórmulas, practiqué más",
		"q4": "Lo relacioné con el frenado de un auto",
	}
}

func (e *env) submit(t *testing.T, s *model.Student, subject string) *model.WeeklyReport {
	t.Helper()
	r, err := e.report.Submit(context.Background(), SubmitInput{StudentID: s.ID, Subject: subject, Answers: answers()})
	require.NoError(t, err)
	return r
}

func (e *env) batch(cfg *config.BatchConfig) *BatchUsecase {
	return NewBatchUsecase(e.reports, e.lifecycle, queue.NewMemoryJobStore(), cfg, e.clock, logger.Nop())
}

var errPermanent = errors.New("report has no usable answers")

func transient() error {
	return apperror.NewTransientError(errors.New("503"), "provider unavailable")
}
