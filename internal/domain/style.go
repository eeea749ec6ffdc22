package domain

import "time"

// PromptTemplate is the optional structured template carried by a style. When
// present it takes priority over the flat prefix/suffix fields.
type PromptTemplate struct {
	Template string `json:"template,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	Suffix   string `json:"suffix,omitempty"`
	Negative string `json:"negative,omitempty"`
}

// StyleConfig is an administrator-curated preset bundling a prompt template
// and generation parameters. Read-only from this service's point of view.
type StyleConfig struct {
	ID               string
	Key              string
	Name             string
	BaseModel        string
	PromptPrefix     string
	PromptSuffix     string
	NegativePrompt   string
	ControlnetModule string
	ControlnetWeight *float64
	GuidanceScale    *float64
	Strength         *float64
	PromptTemplate   *PromptTemplate
	Params           map[string]any
	IsActive         bool
	CreatedAt        time.Time
}

// ResolveModel picks the model identifier for a generation run. A controlnet
// model from params wins when the style uses a controlnet module; otherwise a
// params override, then the style's base model, then the configured default.
func (s *StyleConfig) ResolveModel(defaultModel string) string {
	controlnetModel := s.paramString("controlnetModel")
	if s.ControlnetModule != "" && controlnetModel != "" {
		return controlnetModel
	}
	if override := s.paramString("hfModel"); override != "" {
		return override
	}
	if s.BaseModel != "" {
		return s.BaseModel
	}
	return defaultModel
}

// WantsControl reports whether the preset uses structural conditioning, in
// which case the control image and negative prompt are forwarded to the
// provider.
func (s *StyleConfig) WantsControl() bool {
	if s.ControlnetModule != "" {
		return true
	}
	if s.paramString("controlnetModel") != "" {
		return true
	}
	_, ok := s.Params["controlnetConditioningScale"]
	return ok
}

// EffectiveGuidanceScale returns the style's guidance scale, falling back to
// the params map and finally the given default.
func (s *StyleConfig) EffectiveGuidanceScale(fallback float64) float64 {
	if s.GuidanceScale != nil {
		return *s.GuidanceScale
	}
	if v, ok := s.paramFloat("guidanceScale"); ok {
		return v
	}
	return fallback
}

// EffectiveStrength returns the style's img2img strength, if any.
func (s *StyleConfig) EffectiveStrength() (float64, bool) {
	if s.Strength != nil {
		return *s.Strength, true
	}
	return s.paramFloat("strength")
}

// Steps returns the inference step count from params, or the given default.
func (s *StyleConfig) Steps(fallback int) int {
	if v, ok := s.paramFloat("steps"); ok && v > 0 {
		return int(v)
	}
	return fallback
}

// ControlConditioningScale resolves the controlnet conditioning weight.
func (s *StyleConfig) ControlConditioningScale() (float64, bool) {
	if s.ControlnetWeight != nil {
		return *s.ControlnetWeight, true
	}
	return s.paramFloat("controlnetConditioningScale")
}

func (s *StyleConfig) paramString(key string) string {
	if s.Params == nil {
		return ""
	}
	v, _ := s.Params[key].(string)
	return v
}

func (s *StyleConfig) paramFloat(key string) (float64, bool) {
	if s.Params == nil {
		return 0, false
	}
	switch v := s.Params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
