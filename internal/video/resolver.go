package video

import (
	"net/url"
	"path"
	"strings"

	"github.com/maauso/dreamvisualizer-api/internal/openai"
)

// maxURLDepth bounds the descent into nested output objects.
const maxURLDepth = 8

// Descriptor wraps the JSON object that describes one produced artifact.
type Descriptor struct {
	raw map[string]any
}

// NewDescriptor wraps a decoded JSON object.
func NewDescriptor(raw map[string]any) Descriptor {
	return Descriptor{raw: raw}
}

// Raw returns the underlying JSON object.
func (d Descriptor) Raw() map[string]any { return d.raw }

// FileID returns the file_id field, or "".
func (d Descriptor) FileID() string { return openai.String(d.raw, "file_id") }

// AssetID returns the asset_id field, or "".
func (d Descriptor) AssetID() string { return openai.String(d.raw, "asset_id") }

// URL returns the first direct download URL found in the descriptor.
func (d Descriptor) URL() string { return ExtractURL(d.raw) }

// ResolveOutput picks the artifact descriptor from a job payload. An output
// array yields its first element typed "video", else its first element; an
// output object is used directly.
func ResolveOutput(payload map[string]any) (Descriptor, bool) {
	switch output := payload["output"].(type) {
	case []any:
		var first map[string]any
		for _, item := range output {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if first == nil {
				first = obj
			}
			if strings.EqualFold(openai.String(obj, "type"), "video") {
				return Descriptor{raw: obj}, true
			}
		}
		if first != nil {
			return Descriptor{raw: first}, true
		}
	case map[string]any:
		return Descriptor{raw: output}, true
	}
	return Descriptor{}, false
}

// urlStrategy is one step of the URL lookup. next descends into a child node.
type urlStrategy struct {
	name    string
	extract func(node map[string]any, next func(any) string) string
}

// urlStrategies are tried in order; the first non-blank result wins.
var urlStrategies = []urlStrategy{
	{name: "download_url", extract: directField("download_url")},
	{name: "url", extract: directField("url")},
	{name: "content_url", extract: directField("content_url")},
	{name: "uri", extract: directField("uri")},
	{name: "file", extract: nestedObject("file")},
	{name: "data", extract: eachElement("data")},
	{name: "sources", extract: arrayOrObject("sources")},
	{name: "formats", extract: eachElement("formats")},
	{name: "media", extract: arrayOrObject("media")},
}

// ExtractURL returns the first direct download URL in node, or "".
func ExtractURL(node map[string]any) string {
	return extractURL(node, 0)
}

func extractURL(v any, depth int) string {
	node, ok := v.(map[string]any)
	if !ok || depth > maxURLDepth {
		return ""
	}
	next := func(child any) string { return extractURL(child, depth+1) }
	for _, s := range urlStrategies {
		if u := s.extract(node, next); u != "" {
			return u
		}
	}
	return ""
}

func directField(key string) func(map[string]any, func(any) string) string {
	return func(node map[string]any, _ func(any) string) string {
		return openai.String(node, key)
	}
}

func nestedObject(key string) func(map[string]any, func(any) string) string {
	return func(node map[string]any, next func(any) string) string {
		if obj, ok := openai.Object(node, key); ok {
			return next(obj)
		}
		return ""
	}
}

func eachElement(key string) func(map[string]any, func(any) string) string {
	return func(node map[string]any, next func(any) string) string {
		items, ok := openai.Array(node, key)
		if !ok {
			return ""
		}
		for _, item := range items {
			if u := next(item); u != "" {
				return u
			}
		}
		return ""
	}
}

func arrayOrObject(key string) func(map[string]any, func(any) string) string {
	elements := eachElement(key)
	nested := nestedObject(key)
	return func(node map[string]any, next func(any) string) string {
		if u := elements(node, next); u != "" {
			return u
		}
		return nested(node, next)
	}
}

// formatStrategy derives a candidate extension from the descriptor.
type formatStrategy struct {
	name  string
	infer func(node map[string]any) string
}

// formatStrategies run after the caller's preferred format.
var formatStrategies = []formatStrategy{
	{name: "format", infer: func(n map[string]any) string { return openai.String(n, "format") }},
	{name: "content_type", infer: videoMIME("content_type")},
	{name: "mime_type", infer: videoMIME("mime_type")},
	{name: "url", infer: urlExtension},
	{name: "file_extension", infer: func(n map[string]any) string { return openai.String(n, "file_extension") }},
	{name: "filename", infer: nameExtension("filename")},
	{name: "name", infer: nameExtension("name")},
}

// InferExtension chooses the file extension for a persisted artifact. It
// never fails; the last resort is DefaultFormat.
func InferExtension(desc *Descriptor, opts Options) string {
	if ext := cleanExtension(opts.Format); ext != "" {
		return ext
	}
	if desc != nil {
		for _, s := range formatStrategies {
			if ext := cleanExtension(s.infer(desc.raw)); ext != "" {
				return ext
			}
		}
	}
	return DefaultFormat
}

func videoMIME(key string) func(map[string]any) string {
	return func(n map[string]any) string {
		mime := strings.ToLower(openai.String(n, key))
		if !strings.HasPrefix(mime, "video/") {
			return ""
		}
		mime, _, _ = strings.Cut(mime, ";")
		return mime
	}
}

// urlExtension reads the extension of the URL ExtractURL discovers, so
// url, file.url and sources[] count as well as download_url.
func urlExtension(n map[string]any) string {
	raw := ExtractURL(n)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return path.Ext(u.Path)
}

func nameExtension(key string) func(map[string]any) string {
	return func(n map[string]any) string {
		return path.Ext(openai.String(n, key))
	}
}

// cleanExtension strips a "video/" prefix and leading dots, lowercases the
// value and keeps only ASCII letters and digits.
func cleanExtension(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "video/")
	s = strings.TrimLeft(s, ".")
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
