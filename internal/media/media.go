package media

import (
	"path/filepath"
	"strings"
)

// allowedExtensions is the upload allow-list; anything else is rejected
// at the HTTP boundary before a job is created.
var allowedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".flv":  true,
	".wmv":  true,
	".webm": true,
	".ogg":  true,
	".aac":  true,
	".flac": true,
}

// videoExtensions marks the subset that needs an audio extraction pass
// before transcription.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".flv":  true,
	".wmv":  true,
	".webm": true,
}

// IsAllowedFile reports whether the file name has a recognized audio or
// video extension.
func IsAllowedFile(fileName string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// IsVideoFile reports whether the file name has a recognized video
// extension.
func IsVideoFile(fileName string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// DerivedAudioPath returns the output path for audio extracted from a
// video file: same base name with an _extracted suffix and mp3 container.
func DerivedAudioPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + "_extracted.mp3"
}
