// Package prompt turns a dream narrative into a structured creative brief
// for the video generation model.
package prompt

import "strings"

// Package is the structured brief that drives video generation.
// Absent strings are "" and absent lists are nil; use Normalize at every
// boundary that produces a Package.
type Package struct {
	SoraPrompt      string   `json:"sora_prompt"`
	NarrativeBeats  []string `json:"narrative_beats"`
	VisualKeywords  []string `json:"visual_keywords"`
	EmotionalTone   string   `json:"emotional_tone"`
	ColorPalette    string   `json:"color_palette"`
	NegativePrompts []string `json:"negative_prompts"`
	CameraStyle     string   `json:"camera_style"`
	MotionStyle     string   `json:"motion_style"`
}

// Normalize trims every string field and drops blank list entries,
// preserving list order.
func (p Package) Normalize() Package {
	return Package{
		SoraPrompt:      strings.TrimSpace(p.SoraPrompt),
		NarrativeBeats:  cleanList(p.NarrativeBeats),
		VisualKeywords:  cleanList(p.VisualKeywords),
		EmotionalTone:   strings.TrimSpace(p.EmotionalTone),
		ColorPalette:    strings.TrimSpace(p.ColorPalette),
		NegativePrompts: cleanList(p.NegativePrompts),
		CameraStyle:     strings.TrimSpace(p.CameraStyle),
		MotionStyle:     strings.TrimSpace(p.MotionStyle),
	}
}

func cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}
