package config

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

// normalize expands paths, trims whitespace, and pulls secrets from the
// environment when the file leaves them blank.
func (c *Config) normalize() error {
	var err error
	if c.Paths.ScratchDir, err = expandPath(strings.TrimSpace(c.Paths.ScratchDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return err
	}

	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.AccessKey = fromEnvIfEmpty(c.Storage.AccessKey, "SCRIBED_STORAGE_ACCESS_KEY", "MINIO_ACCESS_KEY")
	c.Storage.SecretKey = fromEnvIfEmpty(c.Storage.SecretKey, "SCRIBED_STORAGE_SECRET_KEY", "MINIO_SECRET_KEY")

	c.Transcription.BaseURL = strings.TrimSpace(c.Transcription.BaseURL)
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	c.Transcription.APIKey = fromEnvIfEmpty(c.Transcription.APIKey, "SCRIBED_TRANSCRIPTION_API_KEY", "DEEPGRAM_API_KEY")

	// Canonicalize the language hint so the provider always receives a
	// well-formed BCP 47 tag regardless of how it was written.
	if lang := strings.TrimSpace(c.Transcription.Language); lang != "" {
		tag, err := language.Parse(lang)
		if err == nil {
			c.Transcription.Language = tag.String()
		} else {
			c.Transcription.Language = lang
		}
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func fromEnvIfEmpty(value string, keys ...string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
