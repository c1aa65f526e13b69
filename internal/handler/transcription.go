package handler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/voxscribe/api/internal/client"
	"github.com/voxscribe/api/internal/media"
	"github.com/voxscribe/api/internal/model"
	"github.com/voxscribe/api/internal/service"
	"github.com/voxscribe/api/internal/worker"
	"github.com/voxscribe/api/pkg/response"
)

// TranscriptionHandler exposes the upload and job endpoints. It only
// reads and deletes job state; all mutations after creation happen in
// the detached pipeline.
type TranscriptionHandler struct {
	jobs      *service.JobService
	pipeline  *worker.PipelineWorker
	validator *validator.Validate
	uploadDir string
	maxSize   int64
}

func NewTranscriptionHandler(
	jobs *service.JobService,
	pipeline *worker.PipelineWorker,
	v *validator.Validate,
	uploadDir string,
	maxSizeMB int,
) *TranscriptionHandler {
	return &TranscriptionHandler{
		jobs:      jobs,
		pipeline:  pipeline,
		validator: v,
		uploadDir: uploadDir,
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
	}
}

// Transcribe handles POST /api/transcribe
// @Summary      Upload media for transcription
// @Description  Accept an audio or video file and start an asynchronous transcription job
// @Tags         Transcription
// @Accept       multipart/form-data
// @Produce      json
// @Param        audioFile   formData file   true  "Audio or video file"
// @Param        speechModel formData string false "Provider speech model (best, nano)"
// @Success      202 {object} model.TranscribeResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      413 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/transcribe [post]
func (h *TranscriptionHandler) Transcribe(c *fiber.Ctx) error {
	file, err := c.FormFile("audioFile")
	if err != nil {
		return response.ValidationError(c, "No file uploaded", nil)
	}

	if !media.IsAllowedFile(file.Filename) {
		return response.ValidationError(c, "Invalid file type. Please upload audio or video files only.", map[string]interface{}{
			"fileName": file.Filename,
		})
	}

	if file.Size > h.maxSize {
		return response.FileTooLarge(c, "File exceeds the upload size limit", map[string]interface{}{
			"maxSize":  h.maxSize,
			"fileSize": file.Size,
		})
	}

	req := model.TranscribeRequest{
		SpeechModel: c.FormValue("speechModel"),
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	// Stored under a fresh name so concurrent uploads of the same file
	// never collide on disk.
	storedName := uuid.New().String() + strings.ToLower(filepath.Ext(file.Filename))
	storedPath := filepath.Join(h.uploadDir, storedName)
	if err := c.SaveFile(file, storedPath); err != nil {
		return response.ServiceError(c, "Failed to store uploaded file")
	}

	job, err := h.jobs.CreateJob(file.Filename)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	// Detached from the request lifetime: the response returns now, the
	// pipeline keeps running.
	go h.pipeline.Process(context.Background(), job.ID, storedPath, file.Filename, client.TranscribeOptions{
		SpeechModel: req.SpeechModel,
	})

	return response.Accepted(c, model.TranscribeResponse{
		JobID:   job.ID,
		Message: "File uploaded successfully. Transcription started.",
	})
}

// ListJobs handles GET /api/jobs
// @Summary      List transcription jobs
// @Produce      json
// @Success      200 {array} model.Job
// @Router       /api/jobs [get]
func (h *TranscriptionHandler) ListJobs(c *fiber.Ctx) error {
	return response.OK(c, h.jobs.ListJobs())
}

// GetJob handles GET /api/jobs/:jobId and GET /api/status/:jobId
// @Summary      Get one transcription job
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.Job
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/jobs/{jobId} [get]
func (h *TranscriptionHandler) GetJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.jobs.GetJob(jobID)
	if err != nil {
		return response.NotFound(c, "Job not found")
	}

	return response.OK(c, job)
}

// DeleteJob handles DELETE /api/jobs/:jobId
// @Summary      Delete a transcription job
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.DeleteJobResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/jobs/{jobId} [delete]
func (h *TranscriptionHandler) DeleteJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if !h.jobs.DeleteJob(jobID) {
		return response.NotFound(c, "Job not found")
	}

	return response.OK(c, model.DeleteJobResponse{Message: "Job deleted successfully"})
}

// formatValidationErrors turns validator errors into field details.
func formatValidationErrors(err error) map[string]interface{} {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]interface{}{"error": err.Error()}
	}

	details := make(map[string]interface{}, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = fmt.Sprintf("failed on %s", fieldErr.Tag())
	}
	return details
}
