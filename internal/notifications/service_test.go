package notifications

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scribed/internal/config"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()

	requests := &[]captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*requests = append(*requests, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, requests
}

func newNtfyConfig(topic string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	return &cfg
}

func TestNewServiceWithoutTopicIsNoop(t *testing.T) {
	cfg := config.Default()
	service := NewService(&cfg)

	if _, ok := service.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", service)
	}
	if err := service.NotifyJobAccepted(context.Background(), "in.wav", "abc"); err != nil {
		t.Fatalf("noop must never fail: %v", err)
	}
}

func TestNotifyTranscriptionCompletedSendsTitledMessage(t *testing.T) {
	server, requests := newNtfyServer(t, http.StatusOK)
	service := NewService(newNtfyConfig(server.URL))

	err := service.NotifyTranscriptionCompleted(context.Background(), "episode.mp3", 90*time.Second)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(*requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*requests))
	}
	got := (*requests)[0]
	if got.title != "Scribed - Transcript Ready" {
		t.Fatalf("title = %q", got.title)
	}
	if !strings.Contains(got.body, "episode.mp3") || !strings.Contains(got.body, "1m30s") {
		t.Fatalf("body = %q", got.body)
	}
	if got.priority != "" {
		t.Fatalf("completion should use default priority, got %q", got.priority)
	}
	if got.tags != "scribed,transcription,completed" {
		t.Fatalf("tags = %q", got.tags)
	}
}

func TestNotifyJobFailedUsesHighPriority(t *testing.T) {
	server, requests := newNtfyServer(t, http.StatusOK)
	service := NewService(newNtfyConfig(server.URL))

	err := service.NotifyJobFailed(context.Background(), "episode.mp3", "transcription_fatal", "provider rejected the audio")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	got := (*requests)[0]
	if got.priority != "high" {
		t.Fatalf("priority = %q", got.priority)
	}
	for _, fragment := range []string{"transcription_fatal", "episode.mp3", "provider rejected the audio"} {
		if !strings.Contains(got.body, fragment) {
			t.Fatalf("body %q missing %q", got.body, fragment)
		}
	}
}

func TestSendSurfacesServerRejection(t *testing.T) {
	server, _ := newNtfyServer(t, http.StatusForbidden)
	service := NewService(newNtfyConfig(server.URL))

	err := service.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for rejected notification")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Fatalf("error = %v", err)
	}
}

func TestSendSurfacesNetworkFailure(t *testing.T) {
	server, _ := newNtfyServer(t, http.StatusOK)
	endpoint := server.URL
	server.Close()
	service := NewService(newNtfyConfig(endpoint))

	err := service.NotifyJobCancelled(context.Background(), "episode.mp3")
	if err == nil {
		t.Fatal("expected error for unreachable server")
	}
	if !strings.Contains(err.Error(), "send ntfy notification") {
		t.Fatalf("error = %v", err)
	}
}
