package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/voxscribe/api/internal/model"
)

// ErrNotFound is returned when a job id is unknown, including the case
// where the job was deleted while a pipeline was still running.
var ErrNotFound = errors.New("job not found")

// ErrDuplicateID is returned when creating a job whose id already
// exists. Ids are uuids so this should never fire in practice.
var ErrDuplicateID = errors.New("job id already exists")

// Registry is the in-memory store of job records. It is the only shared
// mutable state in the process; every mutation is scoped to a single key
// and applied atomically under the lock, so the pipeline goroutines and
// the HTTP handlers can interleave freely.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		jobs: make(map[string]*model.Job),
	}
}

// Create inserts a new job record.
func (r *Registry) Create(job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return ErrDuplicateID
	}

	stored := *job
	r.jobs[job.ID] = &stored
	return nil
}

// Get returns a copy of the job with the given id.
func (r *Registry) Get(id string) (model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return *job, nil
}

// Update applies mutate to the stored record as one atomic
// read-modify-write. It returns ErrNotFound if the job was deleted
// concurrently; callers driving a pipeline treat that as a no-op rather
// than resurrecting the record.
func (r *Registry) Update(id string, mutate func(*model.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	mutate(job)
	return nil
}

// Delete removes a job and reports whether it existed. Deletion is
// permanent; a late pipeline write against the id will not bring the
// record back.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return false
	}
	delete(r.jobs, id)
	return true
}

// List returns snapshot copies of all jobs, newest first.
func (r *Registry) List() []model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, *job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return jobs
}

// Len returns the number of stored jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
