package media

import (
	"context"
	"errors"
	"testing"

	"scribed/internal/services"
)

func stubProbe(result ProbeResult, err error) func(context.Context, string, string) (ProbeResult, error) {
	return func(context.Context, string, string) (ProbeResult, error) {
		return result, err
	}
}

func audioProbe(duration string) ProbeResult {
	return ProbeResult{
		Streams: []Stream{{Index: 0, CodecType: "audio", CodecName: "aac"}},
		Format:  Format{Duration: duration},
	}
}

func TestProbeReturnsDuration(t *testing.T) {
	extractor := NewExtractor("", "", 0, Limits{MaxDurationSeconds: 14400})
	extractor.WithProber(stubProbe(audioProbe("1250.500000"), nil))

	duration, err := extractor.Probe(context.Background(), "in.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if duration != 1250.5 {
		t.Fatalf("duration = %f", duration)
	}
}

func TestProbeFailureIsUnsupportedMedia(t *testing.T) {
	extractor := NewExtractor("", "", 0, Limits{})
	extractor.WithProber(stubProbe(ProbeResult{}, errors.New("moov atom not found")))

	_, err := extractor.Probe(context.Background(), "broken.mp4")
	if !errors.Is(err, services.ErrUnsupportedMedia) {
		t.Fatalf("expected unsupported media, got %v", err)
	}
}

func TestProbeRejectsVideoOnlyFile(t *testing.T) {
	extractor := NewExtractor("", "", 0, Limits{})
	extractor.WithProber(stubProbe(ProbeResult{
		Streams: []Stream{{Index: 0, CodecType: "video", CodecName: "h264"}},
		Format:  Format{Duration: "60.0"},
	}, nil))

	_, err := extractor.Probe(context.Background(), "silent.mp4")
	if !errors.Is(err, services.ErrUnsupportedMedia) {
		t.Fatalf("expected unsupported media, got %v", err)
	}
}

func TestProbeRejectsZeroDuration(t *testing.T) {
	extractor := NewExtractor("", "", 0, Limits{})
	extractor.WithProber(stubProbe(audioProbe("0"), nil))

	_, err := extractor.Probe(context.Background(), "empty.wav")
	if !errors.Is(err, services.ErrMediaEmpty) {
		t.Fatalf("expected media empty, got %v", err)
	}
}

func TestProbeRejectsBelowMinimumDuration(t *testing.T) {
	extractor := NewExtractor("", "", 0, Limits{MinDurationSeconds: 1})
	extractor.WithProber(stubProbe(audioProbe("0.25"), nil))

	_, err := extractor.Probe(context.Background(), "blip.wav")
	if !errors.Is(err, services.ErrMediaEmpty) {
		t.Fatalf("expected media empty, got %v", err)
	}
}

func TestProbeRejectsOverMaximumDuration(t *testing.T) {
	extractor := NewExtractor("", "", 0, Limits{MaxDurationSeconds: 3600})
	extractor.WithProber(stubProbe(audioProbe("7200.0"), nil))

	_, err := extractor.Probe(context.Background(), "marathon.mp3")
	if !errors.Is(err, services.ErrMediaTooLong) {
		t.Fatalf("expected media too long, got %v", err)
	}
}

func TestProbeFallsBackToStreamDuration(t *testing.T) {
	extractor := NewExtractor("", "", 0, Limits{})
	extractor.WithProber(stubProbe(ProbeResult{
		Streams: []Stream{{Index: 0, CodecType: "audio", Duration: "42.5"}},
	}, nil))

	duration, err := extractor.Probe(context.Background(), "in.ogg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if duration != 42.5 {
		t.Fatalf("duration = %f", duration)
	}
}

func TestExtractMonoWAVCommandShape(t *testing.T) {
	extractor := NewExtractor("ffmpeg", "ffprobe", 16000, Limits{})

	var gotName string
	var gotArgs []string
	extractor.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	})

	if err := extractor.ExtractMonoWAV(context.Background(), "in.mkv", "out.wav"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotName != "ffmpeg" {
		t.Fatalf("binary = %q", gotName)
	}

	assertArgPair(t, gotArgs, "-ac", "1")
	assertArgPair(t, gotArgs, "-ar", "16000")
	assertArgPair(t, gotArgs, "-c:a", "pcm_s16le")
	assertArgPair(t, gotArgs, "-i", "in.mkv")
	if gotArgs[len(gotArgs)-1] != "out.wav" {
		t.Fatalf("destination not last: %v", gotArgs)
	}
	for _, flag := range []string{"-vn", "-sn", "-dn", "-y"} {
		if !containsArg(gotArgs, flag) {
			t.Fatalf("args missing %s: %v", flag, gotArgs)
		}
	}
}

func TestExtractMonoWAVFailureIsUnsupportedMedia(t *testing.T) {
	extractor := NewExtractor("", "", 0, Limits{})
	extractor.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("Invalid data found when processing input")
	})

	err := extractor.ExtractMonoWAV(context.Background(), "in.bin", "out.wav")
	if !errors.Is(err, services.ErrUnsupportedMedia) {
		t.Fatalf("expected unsupported media, got %v", err)
	}
}

func TestCutSegmentCommandShape(t *testing.T) {
	extractor := NewExtractor("", "", 0, Limits{})

	var gotArgs []string
	extractor.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotArgs = args
		return nil
	})

	if err := extractor.CutSegment(context.Background(), "audio.wav", 600, 600, "00001.wav"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertArgPair(t, gotArgs, "-ss", "600.000")
	assertArgPair(t, gotArgs, "-t", "600.000")
	assertArgPair(t, gotArgs, "-i", "audio.wav")
	assertArgPair(t, gotArgs, "-c:a", "pcm_s16le")
	if gotArgs[len(gotArgs)-1] != "00001.wav" {
		t.Fatalf("destination not last: %v", gotArgs)
	}
}

func TestCutSegmentRejectsNonPositiveDuration(t *testing.T) {
	extractor := NewExtractor("", "", 0, Limits{})
	extractor.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		t.Fatal("command should not run for invalid duration")
		return nil
	})

	if err := extractor.CutSegment(context.Background(), "audio.wav", 0, 0, "out.wav"); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func assertArgPair(t *testing.T, args []string, flag, value string) {
	t.Helper()
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			if args[i+1] != value {
				t.Fatalf("%s = %q, want %q", flag, args[i+1], value)
			}
			return
		}
	}
	t.Fatalf("args missing %s: %v", flag, args)
}

func containsArg(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}
	return false
}
