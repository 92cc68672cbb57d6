package storage

import (
	"fmt"
	"path"
)

// JobPrefix returns the key prefix under which all of a job's objects
// live.
func JobPrefix(jobKey string) string {
	return path.Join("jobs", jobKey) + "/"
}

// ChunkKey returns the object key for one audio chunk.
func ChunkKey(jobKey string, seqIndex int) string {
	return path.Join("jobs", jobKey, "chunks", fmt.Sprintf("%05d.wav", seqIndex))
}

// ChunkPrefix returns the key prefix covering every chunk of a job.
func ChunkPrefix(jobKey string) string {
	return path.Join("jobs", jobKey, "chunks") + "/"
}

// SourceKey returns the object key for the raw uploaded source file.
func SourceKey(jobKey, filename string) string {
	return path.Join("jobs", jobKey, "source", path.Base(filename))
}

// TranscriptTextKey returns the object key for the plain-text transcript.
func TranscriptTextKey(jobKey string) string {
	return path.Join("jobs", jobKey, "transcript.txt")
}

// TranscriptSRTKey returns the object key for the SRT transcript.
func TranscriptSRTKey(jobKey string) string {
	return path.Join("jobs", jobKey, "transcript.srt")
}
