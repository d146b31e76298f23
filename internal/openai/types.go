// Package openai provides an HTTP client for the OpenAI-compatible REST API
// used by the transcription, prompt engineering and video generation layers.
package openai

import (
	"strings"
)

// DefaultBaseURL is the public OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// FilePart is a single file attached to a multipart request.
// Content is held in memory so the body can be replayed on retry.
type FilePart struct {
	FieldName   string
	FileName    string
	ContentType string
	Content     []byte
}

// String returns the value at key when it is a non-blank string.
// Numbers and other JSON types are ignored.
func String(obj map[string]any, key string) string {
	if obj == nil {
		return ""
	}
	s, ok := obj[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Object returns the value at key when it is a JSON object.
func Object(obj map[string]any, key string) (map[string]any, bool) {
	if obj == nil {
		return nil, false
	}
	m, ok := obj[key].(map[string]any)
	return m, ok
}

// Array returns the value at key when it is a JSON array.
func Array(obj map[string]any, key string) ([]any, bool) {
	if obj == nil {
		return nil, false
	}
	a, ok := obj[key].([]any)
	return a, ok
}
