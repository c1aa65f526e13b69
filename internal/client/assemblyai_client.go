package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/voxscribe/api/internal/config"
)

// TranscriptionProvider is the two-step contract with the external
// transcription service: upload the audio, then transcribe it.
type TranscriptionProvider interface {
	UploadAudio(ctx context.Context, path string) (string, error)
	Transcribe(ctx context.Context, audioURL string, opts TranscribeOptions) (*Transcript, error)
	IsConfigured() bool
}

// TranscribeOptions carries per-request provider settings.
type TranscribeOptions struct {
	SpeechModel string
}

// Transcript is the final provider result.
type Transcript struct {
	ID   string
	Text string
}

// ProviderError reports a failure from the transcription provider.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transcription provider error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("transcription provider error: %s", e.Message)
}

// AssemblyAIClient handles communication with the AssemblyAI API.
type AssemblyAIClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	speechModel  string
	pollInterval time.Duration
	pollTimeout  time.Duration
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL    string `json:"audio_url"`
	SpeechModel string `json:"speech_model,omitempty"`
}

type transcriptResponse struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Text   *string `json:"text"`
	Error  *string `json:"error"`
}

// NewAssemblyAIClient creates a new AssemblyAI API client.
func NewAssemblyAIClient(cfg *config.AssemblyAIConfig) *AssemblyAIClient {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 3
	}

	return &AssemblyAIClient{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		speechModel:  cfg.SpeechModel,
		pollInterval: time.Duration(interval) * time.Second,
		pollTimeout:  time.Duration(cfg.PollTimeout) * time.Second,
	}
}

// UploadAudio streams a local audio file to the provider and returns the
// handle (upload URL) for the transcription step.
func (c *AssemblyAIClient) UploadAudio(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/upload", f)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var uploadResp uploadResponse
	if err := c.do(req, &uploadResp); err != nil {
		return "", err
	}
	if uploadResp.UploadURL == "" {
		return "", &ProviderError{Message: "upload returned no url"}
	}

	return uploadResp.UploadURL, nil
}

// Transcribe submits the uploaded audio for transcription and polls
// until the provider reports a terminal status. With no poll timeout
// configured it waits as long as the provider keeps answering.
func (c *AssemblyAIClient) Transcribe(ctx context.Context, audioURL string, opts TranscribeOptions) (*Transcript, error) {
	model := opts.SpeechModel
	if model == "" {
		model = c.speechModel
	}

	bodyBytes, err := json.Marshal(transcriptRequest{
		AudioURL:    audioURL,
		SpeechModel: model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transcript", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var created transcriptResponse
	if err := c.do(req, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, &ProviderError{Message: "transcript request returned no id"}
	}

	return c.pollTranscript(ctx, created.ID)
}

// pollTranscript re-fetches the transcript until completed or error.
func (c *AssemblyAIClient) pollTranscript(ctx context.Context, id string) (*Transcript, error) {
	var deadline <-chan time.Time
	if c.pollTimeout > 0 {
		timer := time.NewTimer(c.pollTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/transcript/"+id, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", c.apiKey)

		var status transcriptResponse
		if err := c.do(req, &status); err != nil {
			return nil, err
		}

		switch status.Status {
		case "completed":
			text := ""
			if status.Text != nil {
				text = *status.Text
			}
			return &Transcript{ID: status.ID, Text: text}, nil
		case "error":
			msg := "transcription failed"
			if status.Error != nil {
				msg = *status.Error
			}
			return nil, &ProviderError{Message: msg}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, &ProviderError{Message: fmt.Sprintf("transcription timed out after %s", c.pollTimeout)}
		case <-ticker.C:
		}
	}
}

// do executes a request and decodes the JSON response, converting
// non-2xx answers into ProviderError.
func (c *AssemblyAIClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{Status: resp.StatusCode, Message: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration.
func (c *AssemblyAIClient) IsConfigured() bool {
	return c.apiKey != ""
}
