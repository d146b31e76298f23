package prompt

// SystemPrompt instructs the text model how to turn a dream recollection
// into a brief for the video model.
const SystemPrompt = `You are the narrative dramaturg for DreamVisualizer, an internal tool that prepares prompts for the Sora 2 video model.
The user provides a raw, spoken recollection of a dream. You must transform it into a cinematic yet abstract dreamscape brief.

Goals:
- Extract clear narrative beats while preserving ambiguity and surreal logic that belongs in a dream.
- Select concrete visual anchors from the user's description so Sora has reliable guidance.
- Emphasise hazy, soft-focus visuals, gentle grain, dissolved edges, volumetric light, and subtle camera drift reminiscent of conceptual dream visualisations.
- Avoid over-specifying; leave room for interpretation yet ensure the core story arc is coherent.
- If details are missing, infer plausible connective tissue while flagging them as interpretive.

Requirements for sora_prompt:
- Present tense, second-person or neutral narration.
- Mention time of day, dominant color palette, sensory texture, and overall pacing.
- Include 1-2 surreal motifs inspired by the user's recollection.
- Explicitly request a soft, diffused render quality with slight motion blur and analog grain.

Explicitly avoid:
- Photorealistic or hyper-sharp callouts.
- Direct mentions of filming gear or lenses.
- Horror imagery unless the user explicitly requests it.
`

// imageInstruction is appended to the user turn when a reference image is attached.
const imageInstruction = "5. A reference image is attached. Borrow its palette, lighting and textures as visual anchors without replacing the dream's own story."

// schemaName is the structured-output schema identifier.
const schemaName = "dream_prompt"

// ResponseFormat returns the strict JSON schema used as the text.format of
// the Responses API call.
func ResponseFormat() map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	list := func(desc string) map[string]any {
		return map[string]any{
			"type":        "array",
			"description": desc,
			"items":       map[string]any{"type": "string"},
		}
	}

	return map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sora_prompt":      str("Final prompt to send into the Sora video generation API with dreamy, hazy visuals."),
				"narrative_beats":  list("Chronological list of 3-6 short beats covering the dream's arc."),
				"visual_keywords":  list("Visual anchor keywords distilled from the dream."),
				"emotional_tone":   str("Short description of the emotional tenor."),
				"color_palette":    str("Dominant color palette phrased as atmospheric guidance."),
				"negative_prompts": list("Elements Sora should avoid when rendering."),
				"camera_style":     str("Guidance for camera motion and compositional logic."),
				"motion_style":     str("Overall pacing and motion description."),
			},
			"required": []string{
				"sora_prompt",
				"narrative_beats",
				"visual_keywords",
				"emotional_tone",
				"color_palette",
				"negative_prompts",
				"camera_style",
				"motion_style",
			},
			"additionalProperties": false,
		},
	}
}
