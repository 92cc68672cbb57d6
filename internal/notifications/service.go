package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribed/internal/config"
)

const userAgent = "Scribed/0.1.0"

// Service defines the notification surface exposed to the workflow
// manager.
type Service interface {
	NotifyJobAccepted(ctx context.Context, filename, jobKey string) error
	NotifyTranscriptionCompleted(ctx context.Context, filename string, duration time.Duration) error
	NotifyJobFailed(ctx context.Context, filename, errorKind, message string) error
	NotifyJobCancelled(ctx context.Context, filename string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when
// configured. When no ntfy topic is configured, a noop implementation
// is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyJobAccepted(ctx context.Context, filename, jobKey string) error {
	filename = strings.TrimSpace(filename)
	data := payload{
		title:   "Scribed - Job Accepted",
		message: fmt.Sprintf("Queued for transcription: %s (%s)", filename, jobKey),
		tags:    []string{"scribed", "job", "accepted"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTranscriptionCompleted(ctx context.Context, filename string, duration time.Duration) error {
	filename = strings.TrimSpace(filename)
	data := payload{
		title:   "Scribed - Transcript Ready",
		message: fmt.Sprintf("Transcription finished: %s (took %s)", filename, duration.Round(time.Second)),
		tags:    []string{"scribed", "transcription", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, filename, errorKind, message string) error {
	filename = strings.TrimSpace(filename)
	if errorKind = strings.TrimSpace(errorKind); errorKind == "" {
		errorKind = "internal"
	}
	data := payload{
		title:    "Scribed - Job Failed",
		message:  fmt.Sprintf("Failed (%s): %s\n%s", errorKind, filename, strings.TrimSpace(message)),
		tags:     []string{"scribed", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCancelled(ctx context.Context, filename string) error {
	filename = strings.TrimSpace(filename)
	data := payload{
		title:   "Scribed - Job Cancelled",
		message: fmt.Sprintf("Cancelled: %s", filename),
		tags:    []string{"scribed", "job", "cancelled"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	message := fmt.Sprintf("Error: %s", detail)
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		message = fmt.Sprintf("Error with %s: %s", contextLabel, detail)
	}

	data := payload{
		title:    "Scribed - Error",
		message:  message,
		tags:     []string{"scribed", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Scribed - Test",
		message:  "Notification system test",
		tags:     []string{"scribed", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobAccepted(context.Context, string, string) error { return nil }
func (noopService) NotifyTranscriptionCompleted(context.Context, string, time.Duration) error {
	return nil
}
func (noopService) NotifyJobFailed(context.Context, string, string, string) error { return nil }
func (noopService) NotifyJobCancelled(context.Context, string) error              { return nil }
func (noopService) NotifyError(context.Context, error, string) error              { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
