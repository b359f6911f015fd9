package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/apperror"
	goredis "github.com/redis/go-redis/v9"
)

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is the pollable state of one batch run.
type Job struct {
	ID              string      `json:"job_id"`
	Subject         string      `json:"subject,omitempty"`
	Status          JobStatus   `json:"status"`
	Total           int         `json:"total_reports"`
	Processed       int         `json:"processed"`
	Successful      int         `json:"successful"`
	Failed          int         `json:"failed"`
	TotalCost       float64     `json:"total_cost"`
	TotalTimeMs     int64       `json:"total_time_ms"`
	FailedReportIDs []uuid.UUID `json:"failed_report_ids"`
	Error           string      `json:"error,omitempty"`
	StartedAt       time.Time   `json:"started_at"`
	FinishedAt      *time.Time  `json:"finished_at,omitempty"`
}

type JobStore interface {
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
}

var ErrJobNotFound = fmt.Errorf("batch job %w", apperror.ErrNotFound)

type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]Job)}
}

func (s *MemoryJobStore) Save(ctx context.Context, job *Job) error {
	cp := *job
	cp.FailedReportIDs = append([]uuid.UUID(nil), job.FailedReportIDs...)
	s.mu.Lock()
	s.jobs[job.ID] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

// RedisJobStore keeps job state in Redis so any instance can answer polls.
type RedisJobStore struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisJobStore(rdb *goredis.Client, prefix string) *RedisJobStore {
	return &RedisJobStore{rdb: rdb, prefix: prefix, ttl: 24 * time.Hour}
}

func (s *RedisJobStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisJobStore) Save(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(job.ID), raw, s.ttl).Err()
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*Job, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get job: %w", err)
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// NewRedisClient connects and pings, as the server refuses to start with an
// unreachable Redis once one is configured.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
