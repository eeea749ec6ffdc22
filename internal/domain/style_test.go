package domain

import "testing"

func TestResolveModelPrecedence(t *testing.T) {
	style := &StyleConfig{
		BaseModel:        "base/model",
		ControlnetModule: "canny",
		Params:           map[string]any{"controlnetModel": "control/model", "hfModel": "override/model"},
	}
	if got := style.ResolveModel("default/model"); got != "control/model" {
		t.Fatalf("ResolveModel() = %q, want controlnet model", got)
	}

	style.ControlnetModule = ""
	delete(style.Params, "controlnetModel")
	if got := style.ResolveModel("default/model"); got != "override/model" {
		t.Fatalf("ResolveModel() = %q, want params override", got)
	}

	delete(style.Params, "hfModel")
	if got := style.ResolveModel("default/model"); got != "base/model" {
		t.Fatalf("ResolveModel() = %q, want base model", got)
	}

	style.BaseModel = ""
	if got := style.ResolveModel("default/model"); got != "default/model" {
		t.Fatalf("ResolveModel() = %q, want default", got)
	}
}

func TestWantsControl(t *testing.T) {
	if (&StyleConfig{}).WantsControl() {
		t.Fatal("WantsControl() = true for plain style")
	}
	if !(&StyleConfig{ControlnetModule: "depth"}).WantsControl() {
		t.Fatal("WantsControl() = false with controlnet module")
	}
	withScale := &StyleConfig{Params: map[string]any{"controlnetConditioningScale": 0.8}}
	if !withScale.WantsControl() {
		t.Fatal("WantsControl() = false with conditioning scale param")
	}
}

func TestNumericParamFallbacks(t *testing.T) {
	style := &StyleConfig{Params: map[string]any{"steps": float64(40), "guidanceScale": 7.5}}
	if got := style.Steps(28); got != 40 {
		t.Fatalf("Steps() = %d, want 40", got)
	}
	if got := style.EffectiveGuidanceScale(2.5); got != 7.5 {
		t.Fatalf("EffectiveGuidanceScale() = %v, want 7.5", got)
	}
	if got := (&StyleConfig{}).Steps(28); got != 28 {
		t.Fatalf("Steps() fallback = %d, want 28", got)
	}
	if _, ok := (&StyleConfig{}).EffectiveStrength(); ok {
		t.Fatal("EffectiveStrength() reported a value for empty style")
	}
}
