package video

import (
	"strconv"
	"strings"

	"github.com/maauso/dreamvisualizer-api/internal/prompt"
)

// RenderPrompt flattens a prompt package and options into the text sent to
// the video model. Blocks are separated by a blank line and blocks whose
// inputs are empty are left out.
func RenderPrompt(pkg prompt.Package, opts Options) string {
	var blocks []string
	if v := strings.TrimSpace(pkg.SoraPrompt); v != "" {
		blocks = append(blocks, v)
	}

	if len(pkg.NarrativeBeats) > 0 {
		lines := []string{"Key beats:"}
		for _, beat := range pkg.NarrativeBeats {
			lines = append(lines, "- "+beat)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	if len(pkg.VisualKeywords) > 0 {
		blocks = append(blocks, "Visual anchors: "+strings.Join(pkg.VisualKeywords, ", "))
	}
	if len(pkg.NegativePrompts) > 0 {
		blocks = append(blocks, "Avoid: "+strings.Join(pkg.NegativePrompts, ", "))
	}

	blocks = appendLines(blocks,
		labelled("Emotional tone", pkg.EmotionalTone),
		labelled("Palette", pkg.ColorPalette),
		labelled("Camera style", pkg.CameraStyle),
		labelled("Motion style", pkg.MotionStyle),
	)

	var duration string
	if opts.DurationSeconds > 0 {
		duration = "Target duration: " + strconv.Itoa(opts.DurationSeconds) + " seconds"
	}
	blocks = appendLines(blocks, duration, labelled("Aspect ratio", opts.AspectRatio))

	out := strings.Join(blocks, "\n\n")
	if len(blocks) > 1 {
		out += "\n"
	}
	return out
}

func labelled(label, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return label + ": " + value
}

// appendLines adds the non-empty lines as one block.
func appendLines(blocks []string, lines ...string) []string {
	var kept []string
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return blocks
	}
	return append(blocks, strings.Join(kept, "\n"))
}
