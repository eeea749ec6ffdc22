package domain

import (
	"regexp"
	"strings"
)

var (
	wsPattern   = regexp.MustCompile(`\s+`)
	promptToken = regexp.MustCompile(`(?i)\{\{\s*prompt\s*\}\}`)
	prefixToken = regexp.MustCompile(`(?i)\{\{\s*prefix\s*\}\}`)
	suffixToken = regexp.MustCompile(`(?i)\{\{\s*suffix\s*\}\}`)
)

func normalizePrompt(value string) string {
	return strings.TrimSpace(wsPattern.ReplaceAllString(value, " "))
}

func mergePromptParts(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return normalizePrompt(strings.Join(kept, ", "))
}

type resolvedTemplate struct {
	template string
	prefix   string
	suffix   string
	negative string
}

func resolveTemplate(style *StyleConfig) resolvedTemplate {
	resolved := resolvedTemplate{
		prefix:   style.PromptPrefix,
		suffix:   style.PromptSuffix,
		negative: style.NegativePrompt,
	}
	if t := style.PromptTemplate; t != nil {
		resolved.template = t.Template
		if t.Prefix != "" {
			resolved.prefix = t.Prefix
		}
		if t.Suffix != "" {
			resolved.suffix = t.Suffix
		}
		if t.Negative != "" {
			resolved.negative = t.Negative
		}
	}
	return resolved
}

// ComposePrompt builds the final positive prompt for a generation run.
// Deterministic and side-effect free; missing fields degrade to empty
// segments.
func ComposePrompt(style *StyleConfig, userPrompt string) string {
	resolved := resolveTemplate(style)
	base := strings.TrimSpace(userPrompt)

	if resolved.template != "" {
		rendered := promptToken.ReplaceAllString(resolved.template, base)
		rendered = prefixToken.ReplaceAllString(rendered, resolved.prefix)
		rendered = suffixToken.ReplaceAllString(rendered, resolved.suffix)
		return normalizePrompt(rendered)
	}

	// Instruction-style prompt for img2img models: style text first, then any
	// user-provided context.
	styleParts := mergePromptParts(resolved.prefix, resolved.suffix)
	if base != "" {
		return mergePromptParts(styleParts, base)
	}
	return styleParts
}

// ComposeNegativePrompt joins the style's fixed negative prompt with any
// user-supplied negative prompt, dropping empty parts.
func ComposeNegativePrompt(style *StyleConfig, userNegative string) string {
	resolved := resolveTemplate(style)
	return mergePromptParts(resolved.negative, userNegative)
}
