package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ConversionError reports a failed audio extraction, carrying ffmpeg's
// stderr output for diagnosis.
type ConversionError struct {
	Output string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("audio conversion failed: %v", e.Err)
	}
	return fmt.Sprintf("audio conversion failed: %v: %s", e.Err, e.Output)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Normalizer converts video uploads into transcription-ready audio by
// shelling out to ffmpeg.
type Normalizer struct {
	// FFmpegBin is the ffmpeg binary name or path; empty means "ffmpeg"
	// resolved through PATH.
	FFmpegBin string
}

// NewNormalizer creates a normalizer using the given ffmpeg binary.
func NewNormalizer(ffmpegBin string) *Normalizer {
	return &Normalizer{FFmpegBin: ffmpegBin}
}

// ExtractAudio writes the input's audio track to outputPath as mono
// 16kHz mp3. The input file is never modified or removed.
func (n *Normalizer) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	bin := n.FFmpegBin
	if bin == "" {
		bin = "ffmpeg"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return &ConversionError{Err: fmt.Errorf("ffmpeg binary not found: %w", err)}
	}

	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", "16000",
		"-ac", "1",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &ConversionError{
			Output: tailLines(stderr.String(), 5),
			Err:    err,
		}
	}

	return nil
}

// tailLines keeps the last n non-empty lines of ffmpeg's chatty stderr.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := make([]string, 0, n)
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, strings.TrimSpace(line))
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, " | ")
}
