package storage

import (
	"path/filepath"
	"strings"

	"autodiag/utils"
)

const (
	MaxImageBytes = 8 * 1024 * 1024
	MaxVoiceBytes = 10 * 1024 * 1024
	MaxImages     = 4
)

var (
	imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true}
	voiceExtensions = map[string]bool{".wav": true, ".mp3": true, ".m4a": true, ".aac": true, ".ogg": true, ".flac": true}
)

// ValidateImage checks an uploaded photo's name and size.
func ValidateImage(field, filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return utils.FieldError(field, "unsupported image type "+ext)
	}
	if size > MaxImageBytes {
		return utils.FieldError(field, "image exceeds 8MB")
	}
	return nil
}

// ValidateVoice checks an uploaded voice note's name and size.
func ValidateVoice(field, filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !voiceExtensions[ext] {
		return utils.FieldError(field, "unsupported audio type "+ext)
	}
	if size > MaxVoiceBytes {
		return utils.FieldError(field, "voice note exceeds 10MB")
	}
	return nil
}
