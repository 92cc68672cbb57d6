package transcribe

import "context"

// Word is a single recognized word with chunk-relative timing.
type Word struct {
	Text       string
	Start      float64
	End        float64
	Confidence float64
}

// Result is the transcription of one audio chunk.
type Result struct {
	Text  string
	Words []Word
}

// Provider is a speech-to-text backend. Implementations classify
// failures with the transcription sentinel errors so the orchestrator
// can decide between retry and abort.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}
