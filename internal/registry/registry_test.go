package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/voxscribe/api/internal/model"
)

func newJob(id string) *model.Job {
	return &model.Job{
		ID:        id,
		FileName:  id + ".mp3",
		Status:    model.JobStatusProcessing,
		Progress:  0,
		CreatedAt: time.Now(),
	}
}

func TestCreateAndGet(t *testing.T) {
	r := New()

	if err := r.Create(newJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}

	job, err := r.Get("a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != model.JobStatusProcessing || job.Progress != 0 {
		t.Fatalf("fresh job = %s/%d, want processing/0", job.Status, job.Progress)
	}
}

func TestCreateDuplicateID(t *testing.T) {
	r := New()

	if err := r.Create(newJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.Create(newJob("a")); err != ErrDuplicateID {
		t.Fatalf("duplicate create error = %v, want %v", err, ErrDuplicateID)
	}
}

func TestGetUnknown(t *testing.T) {
	r := New()
	if _, err := r.Get("missing"); err != ErrNotFound {
		t.Fatalf("get error = %v, want %v", err, ErrNotFound)
	}
}

func TestUpdateMutatesStoredRecord(t *testing.T) {
	r := New()
	if err := r.Create(newJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := r.Update("a", func(j *model.Job) {
		j.Status = model.JobStatusUploading
		j.Progress = 30
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	job, _ := r.Get("a")
	if job.Status != model.JobStatusUploading || job.Progress != 30 {
		t.Fatalf("job = %s/%d, want uploading/30", job.Status, job.Progress)
	}
}

func TestUpdateAfterDeleteIsNotFound(t *testing.T) {
	r := New()
	if err := r.Create(newJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !r.Delete("a") {
		t.Fatal("delete should report existed")
	}

	// Simulated late pipeline write: must not resurrect the record.
	err := r.Update("a", func(j *model.Job) {
		j.Status = model.JobStatusCompleted
		j.Progress = 100
	})
	if err != ErrNotFound {
		t.Fatalf("update error = %v, want %v", err, ErrNotFound)
	}
	if _, err := r.Get("a"); err != ErrNotFound {
		t.Fatal("deleted job must stay deleted")
	}
	if r.Len() != 0 {
		t.Fatalf("len = %d, want 0", r.Len())
	}
}

func TestDeleteIdempotence(t *testing.T) {
	r := New()
	if err := r.Create(newJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if !r.Delete("a") {
		t.Fatal("first delete should report existed")
	}
	if r.Delete("a") {
		t.Fatal("second delete should report not found")
	}
}

func TestListNewestFirst(t *testing.T) {
	r := New()
	base := time.Now()

	for i := 0; i < 3; i++ {
		job := newJob(fmt.Sprintf("job-%d", i))
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := r.Create(job); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	jobs := r.List()
	if len(jobs) != 3 {
		t.Fatalf("list len = %d, want 3", len(jobs))
	}
	for i := 0; i < len(jobs)-1; i++ {
		if jobs[i].CreatedAt.Before(jobs[i+1].CreatedAt) {
			t.Fatalf("list not sorted newest first: %v", jobs)
		}
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := New()
	if err := r.Create(newJob("a")); err != nil {
		t.Fatalf("create: %v", err)
	}

	job, _ := r.Get("a")
	job.Progress = 99

	stored, _ := r.Get("a")
	if stored.Progress != 0 {
		t.Fatal("mutating a Get result must not affect the stored record")
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("job-%d", i)
		if err := r.Create(newJob(id)); err != nil {
			t.Fatalf("create: %v", err)
		}

		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			for p := 0; p <= 100; p += 10 {
				_ = r.Update(id, func(j *model.Job) { j.Progress = p })
			}
		}(id)
		go func() {
			defer wg.Done()
			for n := 0; n < 10; n++ {
				r.List()
			}
		}()
	}

	wg.Wait()

	for _, job := range r.List() {
		if job.Progress != 100 {
			t.Fatalf("job %s progress = %d, want 100", job.ID, job.Progress)
		}
	}
}
