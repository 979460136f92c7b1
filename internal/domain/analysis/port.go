package analysis

import "context"

// Model is the hosted multimodal generative model.
type Model interface {
	// Generate runs one completion and returns the raw answer.
	Generate(ctx context.Context, call Call) (Reply, error)
	// GenerateImage asks the image model for one artifact.
	GenerateImage(ctx context.Context, call Call) (MediaPayload, error)
	// Name identifies the provider and model for logs.
	Name() string
}

// Part is one ordered element of an outbound call: text or media.
type Part struct {
	Text  string
	Media *MediaPayload
}

// TextPart builds a text part.
func TextPart(s string) Part { return Part{Text: s} }

// MediaPart builds a media part.
func MediaPart(m MediaPayload) Part { return Part{Media: &m} }

// IsMedia reports whether the part carries media bytes.
func (p Part) IsMedia() bool { return p.Media != nil }

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message replayed as conversation context.
type Turn struct {
	Role Role
	Text string
}

// Call is the provider-neutral outbound request.
type Call struct {
	Kind    Kind
	System  string
	History []Turn
	Parts   []Part
	// Schema is set for schema-constrained kinds.
	Schema *Schema
}

// Reply is the provider-neutral answer.
type Reply struct {
	Text  string
	Model string
	Usage Usage
}
