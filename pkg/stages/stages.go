package stages

import (
	"context"

	"ai-lessoncraft-be/pkg/store"
)

// The generation pipeline consumes three external services. Each is modeled
// as a narrow interface so the worker never depends on transport details.

// Renderer produces the HTML artifact for one slide unit.
type Renderer interface {
	Render(ctx context.Context, unit store.GenerationUnit, theme string) (string, error)
}

// Narrator converts narration text into an audio reference (URL or asset id).
type Narrator interface {
	Narrate(ctx context.Context, text string) (string, error)
}

// LearnerProfile is forwarded to the tutoring-script service so scripts match
// the learner's level.
type LearnerProfile struct {
	Grade string `json:"grade"`
	Name  string `json:"name"`
}

// TeachingScript is the tutoring output for one unit.
type TeachingScript struct {
	Script    string   `json:"script"`
	KeyPoints []string `json:"key_points"`
	Examples  []string `json:"examples,omitempty"`
}

// ScriptGenerator produces the per-unit tutoring script.
type ScriptGenerator interface {
	Generate(ctx context.Context, unit store.GenerationUnit, profile LearnerProfile) (*TeachingScript, error)
}
