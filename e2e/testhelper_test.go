package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os/exec"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/client"
	"github.com/voxscribe/api/internal/config"
	"github.com/voxscribe/api/internal/handler"
	"github.com/voxscribe/api/internal/media"
	"github.com/voxscribe/api/internal/metrics"
	"github.com/voxscribe/api/internal/model"
	"github.com/voxscribe/api/internal/registry"
	"github.com/voxscribe/api/internal/service"
	"github.com/voxscribe/api/internal/worker"
	"github.com/voxscribe/api/internal/ws"
)

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	registry *registry.Registry
}

// setupApp creates a Fiber app wired like main.go, but with an
// unconfigured provider so pipelines run the fast mock path, and a
// per-test upload directory.
func setupApp(t *testing.T) *testApp {
	return setupAppWithUploadLimit(t, 100)
}

// setupAppWithUploadLimit wires the same app with a custom per-file
// upload limit so the size gate can be hit with small payloads.
func setupAppWithUploadLimit(t *testing.T, maxSizeMB int) *testApp {
	t.Helper()

	log := zap.NewNop().Sugar()

	jobRegistry := registry.New()
	hub := ws.NewHub(log)
	jobMetrics := metrics.New(prometheus.NewRegistry())

	// No API key: the pipeline uses its mock transcription path
	assemblyClient := client.NewAssemblyAIClient(&config.AssemblyAIConfig{PollInterval: 1})
	normalizer := media.NewNormalizer("ffmpeg")

	jobService := service.NewJobService(jobRegistry, hub, jobMetrics, log)
	pipeline := worker.NewPipelineWorker(jobService, normalizer, assemblyClient, config.CleanupConfig{OnSuccess: true}, log)
	pipeline.MockStepDelay = 5 * time.Millisecond

	validate := validator.New()
	transcriptionHandler := handler.NewTranscriptionHandler(jobService, pipeline, validate, t.TempDir(), maxSizeMB)

	app := fiber.New(fiber.Config{
		BodyLimit: (maxSizeMB + 10) * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		_, ffmpegErr := exec.LookPath("ffmpeg")
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"assemblyai": assemblyClient.IsConfigured(),
				"ffmpeg":     ffmpegErr == nil,
			},
		})
	})

	api := app.Group("/api")
	api.Post("/transcribe", transcriptionHandler.Transcribe)
	api.Get("/jobs", transcriptionHandler.ListJobs)
	api.Get("/jobs/:jobId", transcriptionHandler.GetJob)
	api.Get("/status/:jobId", transcriptionHandler.GetJob)
	api.Delete("/jobs/:jobId", transcriptionHandler.DeleteJob)

	return &testApp{app: app, registry: jobRegistry}
}

// createUploadRequest builds a multipart request carrying a fake media file.
func createUploadRequest(t *testing.T, fileName string) *http.Request {
	return createSizedUploadRequest(t, fileName, "", 1024)
}

// createUploadRequestWithModel additionally sets the speechModel field.
func createUploadRequestWithModel(t *testing.T, fileName, speechModel string) *http.Request {
	return createSizedUploadRequest(t, fileName, speechModel, 1024)
}

// createSizedUploadRequest pads the file part to the given size.
func createSizedUploadRequest(t *testing.T, fileName, speechModel string, payloadBytes int) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if speechModel != "" {
		_ = writer.WriteField("speechModel", speechModel)
	}

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audioFile"; filename=%q`, fileName))
	partHeader.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	_, _ = part.Write([]byte("ID3fake-media-bytes"))
	_, _ = part.Write(make([]byte, payloadBytes))

	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/transcribe", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req
}

// assertStatus fails the test when the response code differs.
func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d (body: %s)", resp.StatusCode, want, body)
	}
}

// parseJSON decodes a response body into a generic map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return result
}

// awaitJobStatus polls the API until the job reaches the wanted status.
func awaitJobStatus(t *testing.T, ta *testApp, jobID string, want model.JobStatus) model.Job {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil)
		resp, err := ta.app.Test(req, -1)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode == http.StatusOK {
			var job model.Job
			if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
				t.Fatalf("failed to decode job: %v", err)
			}
			if job.Status == want {
				return job
			}
			if job.Status.IsTerminal() {
				t.Fatalf("job reached %s while waiting for %s (error: %v)", job.Status, want, job.Error)
			}
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("job %s did not reach %s in time", jobID, want)
	return model.Job{}
}
