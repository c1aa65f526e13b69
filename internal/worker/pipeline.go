package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/client"
	"github.com/voxscribe/api/internal/config"
	"github.com/voxscribe/api/internal/media"
	"github.com/voxscribe/api/internal/model"
)

// AudioExtractor converts a video file's audio track into a standalone
// audio artifact.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
}

// JobTracker is the slice of the job service the pipeline writes
// through.
type JobTracker interface {
	SetStage(jobID string, status model.JobStatus, progress int)
	CompleteJob(jobID, transcript string)
	FailJob(jobID, errMsg string)
}

// PipelineWorker drives one job through the transcription state machine:
// processing -> [extracting_audio] -> uploading -> transcribing ->
// completed | error. It is the sole writer for a job once spawned, so
// transitions for a single job are strictly ordered.
type PipelineWorker struct {
	jobs      JobTracker
	extractor AudioExtractor
	provider  client.TranscriptionProvider
	cleanup   config.CleanupConfig
	log       *zap.SugaredLogger

	// MockStepDelay paces the development fallback used when no
	// provider key is configured. Tests shorten it.
	MockStepDelay time.Duration
}

func NewPipelineWorker(
	jobs JobTracker,
	extractor AudioExtractor,
	provider client.TranscriptionProvider,
	cleanup config.CleanupConfig,
	log *zap.SugaredLogger,
) *PipelineWorker {
	return &PipelineWorker{
		jobs:          jobs,
		extractor:     extractor,
		provider:      provider,
		cleanup:       cleanup,
		log:           log,
		MockStepDelay: 2 * time.Second,
	}
}

// Process runs the full pipeline for one job. It is called on its own
// goroutine, detached from the upload request; errors are written into
// the job record, never returned. Deleting the job mid-flight does not
// stop the pipeline, it just turns the remaining writes into no-ops.
func (w *PipelineWorker) Process(ctx context.Context, jobID, filePath, fileName string, opts client.TranscribeOptions) {
	w.log.Infow("starting transcription job", "jobId", jobID, "file", fileName)

	audioPath := filePath

	if media.IsVideoFile(fileName) {
		w.jobs.SetStage(jobID, model.JobStatusExtractingAudio, 10)

		outputPath := media.DerivedAudioPath(filePath)
		if err := w.extractor.ExtractAudio(ctx, filePath, outputPath); err != nil {
			w.failJob(jobID, filePath, audioPath, err)
			return
		}
		audioPath = outputPath
	}

	if w.provider == nil || !w.provider.IsConfigured() {
		w.processWithMock(ctx, jobID, filePath, audioPath, fileName)
		return
	}

	w.jobs.SetStage(jobID, model.JobStatusUploading, 30)
	audioURL, err := w.provider.UploadAudio(ctx, audioPath)
	if err != nil {
		w.failJob(jobID, filePath, audioPath, err)
		return
	}

	w.jobs.SetStage(jobID, model.JobStatusTranscribing, 50)
	transcript, err := w.provider.Transcribe(ctx, audioURL, opts)
	if err != nil {
		w.failJob(jobID, filePath, audioPath, err)
		return
	}

	w.jobs.CompleteJob(jobID, transcript.Text)
	w.removeArtifacts(jobID, filePath, audioPath, w.cleanup.OnSuccess)
	w.log.Infow("transcription job completed", "jobId", jobID)
}

// processWithMock finishes the pipeline with a canned transcript when no
// provider key is configured, so the service stays usable in development.
func (w *PipelineWorker) processWithMock(ctx context.Context, jobID, filePath, audioPath, fileName string) {
	stages := []struct {
		status   model.JobStatus
		progress int
	}{
		{model.JobStatusUploading, 30},
		{model.JobStatusTranscribing, 50},
	}

	for _, stage := range stages {
		select {
		case <-ctx.Done():
			w.failJob(jobID, filePath, audioPath, ctx.Err())
			return
		case <-time.After(w.MockStepDelay):
		}
		w.jobs.SetStage(jobID, stage.status, stage.progress)
	}

	select {
	case <-ctx.Done():
		w.failJob(jobID, filePath, audioPath, ctx.Err())
		return
	case <-time.After(w.MockStepDelay):
	}

	transcript := fmt.Sprintf("[mock transcript] No transcription provider configured; %s was not sent anywhere.", fileName)
	w.jobs.CompleteJob(jobID, transcript)
	w.removeArtifacts(jobID, filePath, audioPath, w.cleanup.OnSuccess)
	w.log.Infow("transcription job completed (mock)", "jobId", jobID)
}

// failJob records the failure and applies the on-failure cleanup policy.
// Files are kept by default so a failed conversion can be inspected.
func (w *PipelineWorker) failJob(jobID, filePath, audioPath string, err error) {
	w.log.Warnw("transcription job failed", "jobId", jobID, "error", err)
	w.jobs.FailJob(jobID, err.Error())
	w.removeArtifacts(jobID, filePath, audioPath, w.cleanup.OnFailure)
}

// removeArtifacts deletes the uploaded file and, when one was produced,
// the derived audio artifact. Cleanup failures are logged and never
// reach the job record.
func (w *PipelineWorker) removeArtifacts(jobID, filePath, audioPath string, enabled bool) {
	if !enabled {
		return
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		w.log.Warnw("failed to remove uploaded file", "jobId", jobID, "path", filePath, "error", err)
	}
	if audioPath != filePath {
		if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
			w.log.Warnw("failed to remove extracted audio", "jobId", jobID, "path", audioPath, "error", err)
		}
	}
}
