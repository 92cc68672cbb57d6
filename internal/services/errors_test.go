package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapPreservesMarkerAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrStorageTransient, "storage", "upload jobs/a/chunks/00000.wav", "put failed", cause)

	if !errors.Is(err, ErrStorageTransient) {
		t.Fatal("marker lost")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	msg := err.Error()
	for _, fragment := range []string{"storage", "upload jobs/a/chunks/00000.wav", "put failed", "connection reset"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("message %q missing %q", msg, fragment)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := Wrap(ErrMediaEmpty, "media", "probe", "audio duration 0.000s is below the minimum", nil)
	if !errors.Is(err, ErrMediaEmpty) {
		t.Fatal("marker lost")
	}
	if errors.Unwrap(err) == nil {
		t.Fatal("wrapped error should unwrap to the marker")
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{Wrap(ErrStorageTransient, "storage", "put", "", nil), true},
		{Wrap(ErrTranscriptionTransient, "transcribe", "request", "", nil), true},
		{Wrap(ErrStorageFatal, "storage", "put", "", nil), false},
		{Wrap(ErrTranscriptionFatal, "transcribe", "request", "", nil), false},
		{Wrap(ErrUnsupportedMedia, "media", "probe", "", nil), false},
		{errors.New("unclassified"), false},
		{nil, false},
	}
	for i, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Fatalf("case %d: IsTransient(%v) = %v, want %v", i, tc.err, got, tc.want)
		}
	}
}

func TestKindNames(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrConfiguration, "configuration"},
		{ErrValidation, "validation"},
		{ErrUnsupportedMedia, "unsupported_media"},
		{ErrMediaTooLong, "media_too_long"},
		{ErrMediaEmpty, "media_empty"},
		{ErrResourceExhausted, "resource_exhausted"},
		{ErrStorageTransient, "storage_transient"},
		{ErrStorageFatal, "storage_fatal"},
		{ErrTranscriptionTransient, "transcription_transient"},
		{ErrTranscriptionFatal, "transcription_fatal"},
		{errors.New("mystery"), "internal"},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("stage boundary: %w",
		Wrap(ErrMediaTooLong, "media", "probe", "audio duration 20000.0s exceeds the 14400s limit", nil))
	if got := Kind(err); got != "media_too_long" {
		t.Fatalf("Kind = %q", got)
	}
}
