package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"scribed/internal/config"
	"scribed/internal/services"
)

const defaultDeepgramBaseURL = "https://api.deepgram.com"

// DeepgramClient submits pre-recorded audio to the Deepgram listen API.
type DeepgramClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	language   string
}

// NewDeepgramClient builds a client from the transcription config.
func NewDeepgramClient(cfg config.Transcription) *DeepgramClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultDeepgramBaseURL
	}
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &DeepgramClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      strings.TrimSpace(cfg.Model),
		language:   strings.TrimSpace(cfg.Language),
	}
}

// WithHTTPClient overrides the HTTP client (for testing).
func (c *DeepgramClient) WithHTTPClient(client *http.Client) *DeepgramClient {
	c.httpClient = client
	return c
}

// Name identifies the provider in logs and health output.
func (c *DeepgramClient) Name() string { return "deepgram" }

// Ready reports whether the client has the credentials it needs.
func (c *DeepgramClient) Ready() error {
	if c.apiKey == "" {
		return errors.New("deepgram API key is not configured")
	}
	return nil
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
				Words      []struct {
					Word           string  `json:"word"`
					PunctuatedWord string  `json:"punctuated_word"`
					Start          float64 `json:"start"`
					End            float64 `json:"end"`
					Confidence     float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe streams the audio file to the listen endpoint and decodes
// the first alternative of the first channel.
func (c *DeepgramClient) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	if err := c.Ready(); err != nil {
		return Result{}, services.Wrap(services.ErrTranscriptionFatal, "transcribe", "request", err.Error(), nil)
	}

	audio, err := os.Open(audioPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTranscriptionFatal, "transcribe", "request", "audio file unreadable", err)
	}
	defer audio.Close()

	query := url.Values{}
	query.Set("smart_format", "true")
	query.Set("punctuate", "true")
	if c.model != "" {
		query.Set("model", c.model)
	}
	if c.language != "" {
		query.Set("language", c.language)
	}

	endpoint := c.baseURL + "/v1/listen?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, audio)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTranscriptionFatal, "transcribe", "request", "build request", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, services.Wrap(services.ErrTranscriptionTransient, "transcribe", "request", "provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return Result{}, services.Wrap(services.ErrTranscriptionTransient, "transcribe", "request", detail, nil)
		}
		return Result{}, services.Wrap(services.ErrTranscriptionFatal, "transcribe", "request", detail, nil)
	}

	var decoded deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, services.Wrap(services.ErrTranscriptionTransient, "transcribe", "response", "malformed provider response", err)
	}
	if len(decoded.Results.Channels) == 0 || len(decoded.Results.Channels[0].Alternatives) == 0 {
		// Silence decodes to an empty alternative set; treat it as an
		// empty transcript rather than a failure.
		return Result{}, nil
	}

	alternative := decoded.Results.Channels[0].Alternatives[0]
	result := Result{Text: strings.TrimSpace(alternative.Transcript)}
	for _, word := range alternative.Words {
		text := word.PunctuatedWord
		if text == "" {
			text = word.Word
		}
		result.Words = append(result.Words, Word{
			Text:       text,
			Start:      word.Start,
			End:        word.End,
			Confidence: word.Confidence,
		})
	}
	return result, nil
}
