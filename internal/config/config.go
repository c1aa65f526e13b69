package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Upload     UploadConfig
	AssemblyAI AssemblyAIConfig
	FFmpeg     FFmpegConfig
	Cleanup    CleanupConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	StaticDir string
}

type UploadConfig struct {
	Dir       string
	MaxSizeMB int
}

type AssemblyAIConfig struct {
	APIKey       string
	BaseURL      string
	SpeechModel  string
	PollInterval int // seconds
	PollTimeout  int // seconds, 0 means wait forever
}

type FFmpegConfig struct {
	Bin string
}

// CleanupConfig controls removal of uploaded and derived media files.
// Failed jobs keep their files by default so they can be inspected.
type CleanupConfig struct {
	OnSuccess bool
	OnFailure bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("ASSEMBLYAI_API_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.static_dir", "STATIC_DIR")
	_ = viper.BindEnv("upload.dir", "UPLOAD_DIR")
	_ = viper.BindEnv("upload.max_size_mb", "UPLOAD_MAX_SIZE_MB")
	_ = viper.BindEnv("assemblyai.api_key", "ASSEMBLYAI_API_KEY")
	_ = viper.BindEnv("assemblyai.base_url", "ASSEMBLYAI_BASE_URL")
	_ = viper.BindEnv("assemblyai.speech_model", "ASSEMBLYAI_SPEECH_MODEL")
	_ = viper.BindEnv("assemblyai.poll_interval", "ASSEMBLYAI_POLL_INTERVAL")
	_ = viper.BindEnv("assemblyai.poll_timeout", "ASSEMBLYAI_POLL_TIMEOUT")
	_ = viper.BindEnv("ffmpeg.bin", "FFMPEG_BIN")
	_ = viper.BindEnv("cleanup.on_success", "CLEANUP_ON_SUCCESS")
	_ = viper.BindEnv("cleanup.on_failure", "CLEANUP_ON_FAILURE")

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.static_dir", "./public")
	viper.SetDefault("upload.dir", "./uploads")
	viper.SetDefault("upload.max_size_mb", 100)

	// AssemblyAI defaults
	viper.SetDefault("assemblyai.base_url", "https://api.assemblyai.com")
	viper.SetDefault("assemblyai.speech_model", "best")
	viper.SetDefault("assemblyai.poll_interval", 3)
	viper.SetDefault("assemblyai.poll_timeout", 0)

	// FFmpeg defaults
	viper.SetDefault("ffmpeg.bin", "ffmpeg")

	// Cleanup defaults: successful jobs remove their files, failed jobs
	// keep them for debugging
	viper.SetDefault("cleanup.on_success", true)
	viper.SetDefault("cleanup.on_failure", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			StaticDir: viper.GetString("server.static_dir"),
		},
		Upload: UploadConfig{
			Dir:       viper.GetString("upload.dir"),
			MaxSizeMB: viper.GetInt("upload.max_size_mb"),
		},
		AssemblyAI: AssemblyAIConfig{
			APIKey:       viper.GetString("assemblyai.api_key"),
			BaseURL:      viper.GetString("assemblyai.base_url"),
			SpeechModel:  viper.GetString("assemblyai.speech_model"),
			PollInterval: viper.GetInt("assemblyai.poll_interval"),
			PollTimeout:  viper.GetInt("assemblyai.poll_timeout"),
		},
		FFmpeg: FFmpegConfig{
			Bin: viper.GetString("ffmpeg.bin"),
		},
		Cleanup: CleanupConfig{
			OnSuccess: viper.GetBool("cleanup.on_success"),
			OnFailure: viper.GetBool("cleanup.on_failure"),
		},
	}

	return cfg, nil
}
