package transcribe

import (
	"fmt"
	"strings"
)

// pauseThresholdSeconds splits subtitle cues: a silence longer than
// this between consecutive words starts a new cue.
const pauseThresholdSeconds = 0.7

// TimedSegment carries one chunk's transcription plus its position on
// the job's timeline. Word timings are chunk-relative; the renderer
// shifts them by StartSeconds.
type TimedSegment struct {
	StartSeconds float64
	EndSeconds   float64
	Text         string
	Words        []Word
}

type cue struct {
	start float64
	end   float64
	text  string
}

// RenderSRT produces an SRT document from the segments of a job in
// timeline order. Segments with word timings are split into cues at
// pauses; a segment without word timings becomes a single cue spanning
// the whole segment.
func RenderSRT(segments []TimedSegment) string {
	var cues []cue
	for _, segment := range segments {
		cues = append(cues, segmentCues(segment)...)
	}

	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, formatSRTTimestamp(c.start), formatSRTTimestamp(c.end), c.text)
	}
	return b.String()
}

func segmentCues(segment TimedSegment) []cue {
	if len(segment.Words) == 0 {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			return nil
		}
		return []cue{{start: segment.StartSeconds, end: segment.EndSeconds, text: text}}
	}

	var (
		cues    []cue
		words   []string
		start   float64
		end     float64
		started bool
	)
	flush := func() {
		if started && len(words) > 0 {
			cues = append(cues, cue{start: start, end: end, text: strings.Join(words, " ")})
		}
		words = words[:0]
		started = false
	}

	for _, word := range segment.Words {
		wordStart := segment.StartSeconds + word.Start
		wordEnd := segment.StartSeconds + word.End
		if started && wordStart-end > pauseThresholdSeconds {
			flush()
		}
		if !started {
			start = wordStart
			started = true
		}
		words = append(words, word.Text)
		end = wordEnd
	}
	flush()
	return cues
}

// formatSRTTimestamp renders seconds as HH:MM:SS,mmm.
func formatSRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	millis := totalMillis % 1000
	totalSeconds := totalMillis / 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	secs := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// MergeText joins per-chunk transcripts in the given order, skipping
// empty chunks. The caller supplies segments already sorted by
// sequence index.
func MergeText(segments []TimedSegment) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
