package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/intellego/platform/internal/config"
	"github.com/intellego/platform/internal/logger"
	"github.com/intellego/platform/internal/matcher"
)

// ArchivedReport is the document written for every accepted submission.
type ArchivedReport struct {
	ReportID    uuid.UUID         `json:"report_id"`
	StudentID   uuid.UUID         `json:"student_id"`
	StudentName string            `json:"student_name"`
	Subject     string            `json:"subject"`
	WeekStart   time.Time         `json:"week_start"`
	WeekEnd     time.Time         `json:"week_end"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Answers     map[string]string `json:"answers"`
}

type Archiver interface {
	Archive(ctx context.Context, doc ArchivedReport) (string, error)
}

// archiveKey is "<subject>/<student id>/<week start>.json" with the subject
// folded to ascii.
func archiveKey(doc ArchivedReport) string {
	subject := strings.ReplaceAll(matcher.Normalize(doc.Subject), " ", "-")
	if subject == "" {
		subject = "unknown"
	}
	return path.Join(subject, doc.StudentID.String(), doc.WeekStart.UTC().Format("2006-01-02")+".json")
}

type LocalArchiver struct {
	dir string
}

func NewLocalArchiver(dir string) *LocalArchiver {
	return &LocalArchiver{dir: dir}
}

func (a *LocalArchiver) Archive(ctx context.Context, doc ArchivedReport) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	target := filepath.Join(a.dir, filepath.FromSlash(archiveKey(doc)))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	return target, nil
}

type GCSArchiver struct {
	client *storage.Client
	bucket string
}

func NewGCSArchiver(ctx context.Context, bucket string) (*GCSArchiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSArchiver{client: client, bucket: bucket}, nil
}

func (a *GCSArchiver) Archive(ctx context.Context, doc ArchivedReport) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	key := archiveKey(doc)
	w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return "gs://" + a.bucket + "/" + key, nil
}

func (a *GCSArchiver) Close() error {
	return a.client.Close()
}

// NewArchiver picks GCS when a bucket is configured and the local directory
// otherwise.
func NewArchiver(ctx context.Context, cfg *config.StorageConfig, log *logger.Logger) Archiver {
	if cfg.ArchiveGCSBucket != "" {
		a, err := NewGCSArchiver(ctx, cfg.ArchiveGCSBucket)
		if err == nil {
			return a
		}
		log.Warn("gcs archive unavailable, using local directory", "bucket", cfg.ArchiveGCSBucket, "error", err)
	}
	return NewLocalArchiver(cfg.ArchiveDir)
}
