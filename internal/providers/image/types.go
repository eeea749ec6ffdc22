// Package image contains the clients for external image-generation backends
// and the ordered fallback chain that presents them as one Generator.
package image

import "context"

// GenerateParams is the normalized request passed to any backend. Control
// image and negative prompt are only populated when the style preset uses
// structural conditioning.
type GenerateParams struct {
	Model            string
	Prompt           string
	NegativePrompt   string
	GuidanceScale    float64
	Steps            int
	Strength         float64
	Seed             int
	InputImage       []byte
	InputContentType string
	ControlImage     []byte
	// ControlConditioningScale is forwarded only when ControlImage is set.
	ControlConditioningScale float64
	// Overrides carries provider-specific knobs from the style params.
	Overrides map[string]any
}

// Result is the in-memory generation output. Nothing is written to disk or
// the database by a backend; its job ends once bytes are returned.
type Result struct {
	Image       []byte
	ContentType string
}

// Generator is the contract implemented by all image backends and by the
// fallback chain itself.
type Generator interface {
	// Name identifies the backend in logs and history messages.
	Name() string
	// Available reports whether the backend has credentials to attempt a call.
	Available() bool
	Generate(ctx context.Context, params GenerateParams) (*Result, error)
}
