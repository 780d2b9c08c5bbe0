package config

const (
	defaultDataDir              = "~/.local/share/transcriptor"
	defaultLogDir               = "~/.local/share/transcriptor/logs"
	defaultAPIBind              = "127.0.0.1:8537"
	defaultYtdlpBinary          = "yt-dlp"
	defaultDemucsBinary         = "demucs"
	defaultFFmpegBinary         = "ffmpeg"
	defaultWhisperModel         = "large-v3"
	defaultFetchTimeout         = 600
	defaultIsolationTimeout     = 900
	defaultTranscribeTimeout    = 1800
	defaultMaxConcurrentJobs    = 4
	defaultProgressPollInterval = 1
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Tools: Tools{
			YtdlpBinary:       defaultYtdlpBinary,
			DemucsBinary:      defaultDemucsBinary,
			FFmpegBinary:      defaultFFmpegBinary,
			WhisperModel:      defaultWhisperModel,
			IsolationEnabled:  true,
			FetchTimeout:      defaultFetchTimeout,
			IsolationTimeout:  defaultIsolationTimeout,
			TranscribeTimeout: defaultTranscribeTimeout,
		},
		Workflow: Workflow{
			MaxConcurrentJobs:    defaultMaxConcurrentJobs,
			ProgressPollInterval: defaultProgressPollInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
