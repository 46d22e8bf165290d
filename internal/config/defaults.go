package config

const (
	defaultWatchDir  = "~/Downloads/DriveVideos"
	defaultOutputDir = "~/Downloads/DriveVideos/Combined"
	defaultLogDir    = "~/.local/share/pairmux/logs"

	defaultFFmpegBinary = "ffmpeg"
	defaultMergeTimeout = 300

	defaultWatcherMode  = "watch"
	defaultPollInterval = 5
	defaultSettleDelay  = 2

	defaultReadinessCheckInterval = 1
	defaultStabilityThreshold     = 3
	defaultReadinessTimeout       = 30

	defaultNotifyRequestTimeout = 10
	defaultFetchTimeout         = 300

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:  defaultWatchDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		FFmpeg: FFmpeg{
			Binary:       defaultFFmpegBinary,
			MergeTimeout: defaultMergeTimeout,
		},
		Watcher: Watcher{
			Mode:         defaultWatcherMode,
			PollInterval: defaultPollInterval,
			SettleDelay:  defaultSettleDelay,
		},
		Readiness: Readiness{
			CheckInterval:      defaultReadinessCheckInterval,
			StabilityThreshold: defaultStabilityThreshold,
			Timeout:            defaultReadinessTimeout,
		},
		Notifications: Notifications{
			Enabled:        true,
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Cleanup: Cleanup{
			DeleteTempFiles: true,
		},
		Fetch: Fetch{
			Timeout: defaultFetchTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
