// Package chunking splits normalized audio into bounded-duration
// segments for transcription. The plan is pure arithmetic; the stage
// handler materializes it with ffmpeg cuts.
package chunking

import (
	"fmt"
)

// planEpsilon absorbs floating-point drift so an exact multiple of the
// chunk duration never produces a zero-length trailing segment.
const planEpsilon = 1e-6

// Segment is one planned slice of a job's audio timeline.
type Segment struct {
	SeqIndex     int
	StartSeconds float64
	EndSeconds   float64
}

// DurationSeconds returns the segment's length.
func (s Segment) DurationSeconds() float64 {
	return s.EndSeconds - s.StartSeconds
}

// Plan divides durationSeconds into contiguous segments of at most
// maxChunkSeconds each. Segments are 0-indexed, gap-free, and only the
// final segment may be shorter than the maximum. A duration at or below
// the maximum yields exactly one segment.
func Plan(durationSeconds, maxChunkSeconds float64) ([]Segment, error) {
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("chunk plan: non-positive duration %f", durationSeconds)
	}
	if maxChunkSeconds <= 0 {
		return nil, fmt.Errorf("chunk plan: non-positive max chunk duration %f", maxChunkSeconds)
	}

	var segments []Segment
	start := 0.0
	for start+planEpsilon < durationSeconds {
		end := start + maxChunkSeconds
		if end > durationSeconds {
			end = durationSeconds
		}
		segments = append(segments, Segment{
			SeqIndex:     len(segments),
			StartSeconds: start,
			EndSeconds:   end,
		})
		start = end
	}
	return segments, nil
}
