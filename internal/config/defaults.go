package config

const (
	defaultScratchDir              = "~/.local/share/scribed/scratch"
	defaultLogDir                  = "~/.local/share/scribed/logs"
	defaultScratchDiskFloorMB      = 1024
	defaultScratchStaleAfterHours  = 24
	defaultSampleRate              = 16000
	defaultMaxDurationSeconds      = 14400
	defaultMinDurationSeconds      = 1
	defaultMaxChunkDuration        = 600
	defaultStorageBucket           = "scribed-media"
	defaultStorageEndpoint         = "localhost:9000"
	defaultStorageRetryLimit       = 4
	defaultStorageRetryDelayMS     = 500
	defaultStorageTimeoutSeconds   = 30
	defaultUploadConcurrency       = 4
	defaultProviderBaseURL         = "https://api.deepgram.com"
	defaultProviderModel           = "nova-2"
	defaultProviderLanguage        = "en-US"
	defaultProviderConcurrency     = 4
	defaultProviderRetryLimit      = 3
	defaultProviderRetryDelayMS    = 2000
	defaultProviderTimeoutSeconds  = 120
	defaultJobConcurrency          = 2
	defaultQueuePollInterval       = 5
	defaultErrorRetryInterval      = 10
	defaultHeartbeatInterval       = 15
	defaultHeartbeatTimeout        = 120
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultNotifyRequestTimeout    = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
		},
		Scratch: Scratch{
			DiskFloorMB:     defaultScratchDiskFloorMB,
			StaleAfterHours: defaultScratchStaleAfterHours,
		},
		Media: Media{
			SampleRate:         defaultSampleRate,
			MaxDurationSeconds: defaultMaxDurationSeconds,
			MinDurationSeconds: defaultMinDurationSeconds,
		},
		Chunking: Chunking{
			MaxChunkDurationSeconds: defaultMaxChunkDuration,
		},
		Storage: Storage{
			Endpoint:              defaultStorageEndpoint,
			Bucket:                defaultStorageBucket,
			RetryLimit:            defaultStorageRetryLimit,
			RetryDelayMS:          defaultStorageRetryDelayMS,
			RequestTimeoutSeconds: defaultStorageTimeoutSeconds,
			UploadConcurrency:     defaultUploadConcurrency,
		},
		Transcription: Transcription{
			BaseURL:               defaultProviderBaseURL,
			Model:                 defaultProviderModel,
			Language:              defaultProviderLanguage,
			Concurrency:           defaultProviderConcurrency,
			RetryLimit:            defaultProviderRetryLimit,
			RetryDelayMS:          defaultProviderRetryDelayMS,
			RequestTimeoutSeconds: defaultProviderTimeoutSeconds,
		},
		Workflow: Workflow{
			JobConcurrency:     defaultJobConcurrency,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
	}
}
