package media

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"scribed/internal/services"
)

// Limits bounds what the service accepts before spending compute on a
// job.
type Limits struct {
	MaxDurationSeconds float64
	MinDurationSeconds float64
}

// Extractor runs ffprobe and ffmpeg to turn arbitrary uploads into
// normalized mono PCM WAV audio.
type Extractor struct {
	ffmpegBinary  string
	ffprobeBinary string
	sampleRate    int
	limits        Limits

	commandRunner func(ctx context.Context, name string, args ...string) error
	prober        func(ctx context.Context, binary, path string) (ProbeResult, error)
}

// NewExtractor builds an extractor with the given binaries and limits.
func NewExtractor(ffmpegBinary, ffprobeBinary string, sampleRate int, limits Limits) *Extractor {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Extractor{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		sampleRate:    sampleRate,
		limits:        limits,
		prober:        Inspect,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Extractor) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	e.commandRunner = runner
}

// WithProber sets a custom probe function (for testing).
func (e *Extractor) WithProber(prober func(ctx context.Context, binary, path string) (ProbeResult, error)) {
	e.prober = prober
}

// Probe inspects the source and validates it against the configured
// limits, returning its duration in seconds.
func (e *Extractor) Probe(ctx context.Context, source string) (float64, error) {
	result, err := e.prober(ctx, e.ffprobeBinary, source)
	if err != nil {
		return 0, services.Wrap(services.ErrUnsupportedMedia, "media", "probe",
			"ffprobe could not read the file; container is missing or not a media format", err)
	}
	if result.AudioStreamCount() == 0 {
		return 0, services.Wrap(services.ErrUnsupportedMedia, "media", "probe",
			"file contains no audio stream", nil)
	}

	duration := result.DurationSeconds()
	if duration <= 0 || (e.limits.MinDurationSeconds > 0 && duration < e.limits.MinDurationSeconds) {
		return 0, services.Wrap(services.ErrMediaEmpty, "media", "probe",
			fmt.Sprintf("audio duration %.3fs is below the minimum", duration), nil)
	}
	if e.limits.MaxDurationSeconds > 0 && duration > e.limits.MaxDurationSeconds {
		return 0, services.Wrap(services.ErrMediaTooLong, "media", "probe",
			fmt.Sprintf("audio duration %.1fs exceeds the %.0fs limit", duration, e.limits.MaxDurationSeconds), nil)
	}
	return duration, nil
}

// ExtractMonoWAV extracts the full audio stream from source into a mono
// PCM WAV at the configured sample rate.
func (e *Extractor) ExtractMonoWAV(ctx context.Context, source, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(e.sampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
	if err := e.run(ctx, e.ffmpegBinary, args...); err != nil {
		return services.Wrap(services.ErrUnsupportedMedia, "media", "extract",
			"ffmpeg could not decode an audio stream from the file", err)
	}
	return nil
}

// CutSegment writes the [startSec, startSec+durationSec) window of an
// already normalized WAV to dest. Inputs are PCM so the cut is
// sample-accurate without re-probing.
func (e *Extractor) CutSegment(ctx context.Context, source string, startSec, durationSec float64, dest string) error {
	if durationSec <= 0 {
		return fmt.Errorf("cut segment: invalid duration %f", durationSec)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(startSec),
		"-t", formatSeconds(durationSec),
		"-i", source,
		"-c:a", "pcm_s16le",
		dest,
	}
	if err := e.run(ctx, e.ffmpegBinary, args...); err != nil {
		return fmt.Errorf("cut segment at %s: %w", formatSeconds(startSec), err)
	}
	return nil
}

// HealthCheck reports whether the ffmpeg and ffprobe binaries resolve.
func (e *Extractor) HealthCheck() error {
	for _, binary := range []string{e.ffmpegBinary, e.ffprobeBinary} {
		if _, err := exec.LookPath(binary); err != nil {
			return fmt.Errorf("binary %q not found in PATH: %w", binary, err)
		}
	}
	return nil
}

func (e *Extractor) run(ctx context.Context, name string, args ...string) error {
	if e.commandRunner != nil {
		return e.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
