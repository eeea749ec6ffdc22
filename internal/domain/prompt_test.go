package domain

import "testing"

func TestComposePromptWithTemplate(t *testing.T) {
	style := &StyleConfig{
		PromptTemplate: &PromptTemplate{
			Template: "{{prefix}}, {{prompt}}, {{suffix}}",
			Prefix:   "ghibli style",
			Suffix:   "soft lighting",
		},
	}
	got := ComposePrompt(style, "a cat on a roof")
	want := "ghibli style, a cat on a roof, soft lighting"
	if got != want {
		t.Fatalf("ComposePrompt() = %q, want %q", got, want)
	}
}

func TestComposePromptTemplateTokensCaseInsensitive(t *testing.T) {
	style := &StyleConfig{
		PromptTemplate: &PromptTemplate{
			Template: "{{ Prompt }} in {{ PREFIX }}",
			Prefix:   "watercolor",
		},
	}
	got := ComposePrompt(style, "a harbor")
	want := "a harbor in watercolor"
	if got != want {
		t.Fatalf("ComposePrompt() = %q, want %q", got, want)
	}
}

func TestComposePromptWithoutTemplate(t *testing.T) {
	style := &StyleConfig{
		PromptPrefix: "oil painting",
		PromptSuffix: "highly detailed",
	}
	got := ComposePrompt(style, "a mountain lake")
	want := "oil painting, highly detailed, a mountain lake"
	if got != want {
		t.Fatalf("ComposePrompt() = %q, want %q", got, want)
	}
}

func TestComposePromptEmptyUserPrompt(t *testing.T) {
	style := &StyleConfig{PromptPrefix: "sketch"}
	if got := ComposePrompt(style, "   "); got != "sketch" {
		t.Fatalf("ComposePrompt() = %q, want %q", got, "sketch")
	}
}

func TestComposePromptNormalizesWhitespace(t *testing.T) {
	style := &StyleConfig{
		PromptTemplate: &PromptTemplate{Template: "  {{prompt}}   {{suffix}} "},
	}
	got := ComposePrompt(style, "a   dog")
	if got != "a dog" {
		t.Fatalf("ComposePrompt() = %q, want %q", got, "a dog")
	}
}

func TestComposePromptTemplateOverridesFlatFields(t *testing.T) {
	style := &StyleConfig{
		PromptPrefix: "flat prefix",
		PromptTemplate: &PromptTemplate{
			Template: "{{prefix}}: {{prompt}}",
			Prefix:   "template prefix",
		},
	}
	got := ComposePrompt(style, "x")
	want := "template prefix: x"
	if got != want {
		t.Fatalf("ComposePrompt() = %q, want %q", got, want)
	}
}

func TestComposeNegativePrompt(t *testing.T) {
	style := &StyleConfig{NegativePrompt: "blurry, low quality"}
	got := ComposeNegativePrompt(style, "text")
	want := "blurry, low quality, text"
	if got != want {
		t.Fatalf("ComposeNegativePrompt() = %q, want %q", got, want)
	}
	if got := ComposeNegativePrompt(&StyleConfig{}, ""); got != "" {
		t.Fatalf("ComposeNegativePrompt() = %q, want empty", got)
	}
}
