package model

import "time"

// JobStatus tracks a transcription job through its pipeline stages.
type JobStatus string

const (
	JobStatusProcessing      JobStatus = "processing"
	JobStatusExtractingAudio JobStatus = "extracting_audio"
	JobStatusUploading       JobStatus = "uploading"
	JobStatusTranscribing    JobStatus = "transcribing"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusError           JobStatus = "error"
)

// IsTerminal reports whether a status is a final pipeline state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// Job represents one tracked transcription request.
//
// Exactly one of Transcript and Error is set once the job reaches a
// terminal state; Progress is 100 exactly when Status is completed.
type Job struct {
	ID          string     `json:"id"`
	FileName    string     `json:"fileName"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Transcript  *string    `json:"transcript,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// TranscribeRequest carries the optional per-upload transcription options.
type TranscribeRequest struct {
	SpeechModel string `form:"speechModel" validate:"omitempty,oneof=best nano"`
}

// TranscribeResponse is returned as soon as the upload is accepted,
// before the pipeline has made any progress.
type TranscribeResponse struct {
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// DeleteJobResponse confirms removal of a job record.
type DeleteJobResponse struct {
	Message string `json:"message"`
}
