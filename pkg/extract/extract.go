// Package extract isolates the executable script from a model's raw text
// response. Models inconsistently honor "no markdown" instructions, so
// extraction is an ordered best-effort fallback: a fence tagged for the
// script language, then any fence, then the raw text. It never fails; at
// worst the sandbox rejects the text and the retry loop takes over.
package extract

import "strings"

// ScriptLang is the fence tag of the sandbox's script language.
const ScriptLang = "go"

// Script returns the best-guess executable script from raw model output.
func Script(raw string) string {
	if code, ok := TaggedBlock(raw, ScriptLang); ok {
		return code
	}
	if code, ok := AnyBlock(raw); ok {
		return code
	}
	return strings.TrimSpace(raw)
}

// TaggedBlock returns the interior of the first fenced block tagged with
// lang, trimmed. Reports false when no such block exists.
func TaggedBlock(raw, lang string) (string, bool) {
	for _, pattern := range []string{"```" + lang + "\n", "```" + lang + "\r\n"} {
		if code, ok := interior(raw, pattern); ok {
			return code, true
		}
	}
	return "", false
}

// AnyBlock returns the interior of the first fenced block regardless of its
// tag, trimmed. The opening fence's tag line is skipped.
func AnyBlock(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start == -1 {
		return "", false
	}
	rest := raw[start+3:]
	nl := strings.IndexByte(rest, '\n')
	if nl == -1 {
		return "", false
	}
	body := rest[nl+1:]
	end := strings.Index(body, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(body[:end]), true
}

func interior(raw, opening string) (string, bool) {
	idx := strings.Index(raw, opening)
	if idx == -1 {
		return "", false
	}
	body := raw[idx+len(opening):]
	end := strings.Index(body, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(body[:end]), true
}
