package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/intellego/platform/internal/logger"
	"github.com/intellego/platform/internal/model"
	"github.com/intellego/platform/internal/repository"
	"github.com/intellego/platform/internal/service"
	"github.com/pgvector/pgvector-go"
)

const priorReportLimit = 3

// PriorContext selects earlier reports handed to the feedback generator.
type PriorContext interface {
	Related(ctx context.Context, report *model.WeeklyReport) ([]model.WeeklyReport, error)
}

// RecentReports returns the latest earlier reports of the same subject.
type RecentReports struct {
	reports *repository.ReportRepository
}

func NewRecentReports(reports *repository.ReportRepository) *RecentReports {
	return &RecentReports{reports: reports}
}

func (p *RecentReports) Related(ctx context.Context, r *model.WeeklyReport) ([]model.WeeklyReport, error) {
	return p.reports.PreviousReports(ctx, r.StudentID, r.Subject, r.WeekStart, priorReportLimit)
}

// SimilarReports embeds the report, stores the vector and returns the
// student's closest earlier reports in the subject. Any embedding failure
// degrades to the recent reports.
type SimilarReports struct {
	reports    *repository.ReportRepository
	embeddings *repository.EmbeddingRepository
	embedder   service.Embedder
	fallback   PriorContext
	log        *logger.Logger
}

func NewSimilarReports(reports *repository.ReportRepository, embeddings *repository.EmbeddingRepository, embedder service.Embedder, log *logger.Logger) *SimilarReports {
	return &SimilarReports{
		reports:    reports,
		embeddings: embeddings,
		embedder:   embedder,
		fallback:   NewRecentReports(reports),
		log:        log,
	}
}

func (p *SimilarReports) Related(ctx context.Context, r *model.WeeklyReport) ([]model.WeeklyReport, error) {
	out, err := p.similar(ctx, r)
	if err != nil {
		p.log.Warn("similar report lookup failed, using recent reports", "report_id", r.ID, "error", err)
		return p.fallback.Related(ctx, r)
	}
	return out, nil
}

func (p *SimilarReports) similar(ctx context.Context, r *model.WeeklyReport) ([]model.WeeklyReport, error) {
	values, err := p.embedder.GenerateEmbedding(ctx, reportText(r))
	if err != nil {
		return nil, fmt.Errorf("embed report: %w", err)
	}
	vec := pgvector.NewVector(values)
	if err := p.embeddings.Upsert(ctx, &model.ReportEmbedding{
		ReportID:  r.ID,
		StudentID: r.StudentID,
		Subject:   r.Subject,
		WeekStart: r.WeekStart,
		Embedding: vec,
	}); err != nil {
		return nil, fmt.Errorf("store embedding: %w", err)
	}

	ids, err := p.embeddings.SimilarReports(ctx, r.StudentID, r.Subject, vec, r.WeekStart, priorReportLimit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := p.reports.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		rank[id.String()] = i
	}
	sort.Slice(found, func(i, j int) bool {
		return rank[found[i].ID.String()] < rank[found[j].ID.String()]
	})
	return found, nil
}

func reportText(r *model.WeeklyReport) string {
	var b strings.Builder
	b.WriteString(r.Subject)
	for _, q := range ReportQuestions {
		for _, a := range r.Answers {
			if a.QuestionID == q && a.Answer != "" {
				b.WriteString("\n")
				b.WriteString(a.Answer)
			}
		}
	}
	return b.String()
}
