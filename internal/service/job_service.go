package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/metrics"
	"github.com/voxscribe/api/internal/model"
	"github.com/voxscribe/api/internal/registry"
	"github.com/voxscribe/api/internal/ws"
)

// JobService owns job lifecycle writes. Handlers read and delete through
// it; the pipeline worker advances state through the stage helpers. All
// state lives in the injected registry.
type JobService struct {
	registry *registry.Registry
	hub      *ws.Hub
	metrics  *metrics.Metrics
	log      *zap.SugaredLogger
}

func NewJobService(reg *registry.Registry, hub *ws.Hub, m *metrics.Metrics, log *zap.SugaredLogger) *JobService {
	return &JobService{
		registry: reg,
		hub:      hub,
		metrics:  m,
		log:      log,
	}
}

// CreateJob registers a new job in the initial processing state and
// returns a snapshot of it. Nothing has run yet when this returns; the
// caller spawns the pipeline afterwards.
func (s *JobService) CreateJob(fileName string) (model.Job, error) {
	job := model.Job{
		ID:        uuid.New().String(),
		FileName:  fileName,
		Status:    model.JobStatusProcessing,
		Progress:  0,
		CreatedAt: time.Now(),
	}

	if err := s.registry.Create(&job); err != nil {
		return model.Job{}, err
	}

	s.metrics.JobsCreated.Inc()
	return job, nil
}

// GetJob returns one job record.
func (s *JobService) GetJob(id string) (model.Job, error) {
	return s.registry.Get(id)
}

// ListJobs returns all job records, newest first.
func (s *JobService) ListJobs() []model.Job {
	return s.registry.List()
}

// DeleteJob removes a job record and reports whether it existed. An
// in-flight pipeline for the job keeps running; its next write becomes
// a no-op.
func (s *JobService) DeleteJob(id string) bool {
	existed := s.registry.Delete(id)
	if existed {
		s.metrics.JobsDeleted.Inc()
	}
	return existed
}

// SetStage advances a job to a non-terminal pipeline stage. A write
// against a deleted job is silently dropped.
func (s *JobService) SetStage(jobID string, status model.JobStatus, progress int) {
	s.apply(jobID, func(j *model.Job) {
		j.Status = status
		j.Progress = progress
	})
}

// CompleteJob records the transcript and moves the job to its terminal
// success state. Status and progress change together so the
// progress==100 <=> completed invariant holds at every observable
// instant.
func (s *JobService) CompleteJob(jobID, transcript string) {
	var created time.Time
	if !s.apply(jobID, func(j *model.Job) {
		now := time.Now()
		j.Status = model.JobStatusCompleted
		j.Progress = 100
		j.Transcript = &transcript
		j.CompletedAt = &now
		created = j.CreatedAt
	}) {
		return
	}

	s.metrics.JobsCompleted.Inc()
	s.metrics.PipelineDuration.Observe(time.Since(created).Seconds())
}

// FailJob moves the job to its terminal error state. Progress keeps its
// last value and the transcript stays unset.
func (s *JobService) FailJob(jobID, errMsg string) {
	var created time.Time
	if !s.apply(jobID, func(j *model.Job) {
		now := time.Now()
		j.Status = model.JobStatusError
		j.Error = &errMsg
		j.CompletedAt = &now
		created = j.CreatedAt
	}) {
		return
	}

	s.metrics.JobsFailed.Inc()
	s.metrics.PipelineDuration.Observe(time.Since(created).Seconds())
}

// apply runs one atomic registry mutation and publishes the updated
// snapshot, reporting whether the write landed. ErrNotFound means the
// job was deleted while its pipeline was still running; the write is
// dropped without resurrecting it, and callers skip their bookkeeping.
func (s *JobService) apply(jobID string, mutate func(*model.Job)) bool {
	var snapshot model.Job
	err := s.registry.Update(jobID, func(j *model.Job) {
		mutate(j)
		snapshot = *j
	})
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			s.log.Debugw("dropping update for deleted job", "jobId", jobID)
			return false
		}
		s.log.Errorw("failed to update job", "jobId", jobID, "error", err)
		return false
	}

	s.hub.PublishJob(snapshot)
	return true
}
