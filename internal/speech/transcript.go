// Package speech converts a spoken dream recording into text.
package speech

import (
	"strings"
	"time"
)

// secondsPerWord approximates speaking pace for synthesized transcripts.
const secondsPerWord = 0.6

// Request describes one transcription call.
type Request struct {
	// AudioPath is a readable local audio file.
	AudioPath string
	// Language is an optional ISO-639-1 hint such as "en".
	Language string
	// Temperature is an optional sampling temperature.
	Temperature *float64
}

// Segment is one timed utterance.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the text recovered from an audio recording.
type Transcript struct {
	Text        string    `json:"text"`
	Segments    []Segment `json:"segments"`
	GeneratedAt time.Time `json:"generated_at"`
}

// FromText builds a transcript for text supplied by the caller instead of
// recognized from audio. It has a single segment whose length is estimated
// from the word count, never shorter than one second.
func FromText(text string, now time.Time) *Transcript {
	text = strings.TrimSpace(text)
	end := float64(len(strings.Fields(text))) * secondsPerWord
	if end < 1 {
		end = 1
	}
	return &Transcript{
		Text:        text,
		Segments:    []Segment{{Start: 0, End: end, Text: text}},
		GeneratedAt: now,
	}
}
