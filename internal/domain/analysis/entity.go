package analysis

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// MediaPayload is an encoded upload ready to be shipped to the model.
type MediaPayload struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
	// Name is the original file name, informational only.
	Name string `json:"name,omitempty"`
}

// Base64 returns the standard base64 form of the payload bytes.
func (m MediaPayload) Base64() string {
	return base64.StdEncoding.EncodeToString(m.Data)
}

// DataURL renders the payload as a data: URL.
func (m MediaPayload) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", m.MIMEType, m.Base64())
}

// Size returns the number of raw bytes held.
func (m MediaPayload) Size() int { return len(m.Data) }

// Release drops the buffer once the request that owned it has resolved.
func (m *MediaPayload) Release() { m.Data = nil }

// DecodeMediaPayload reverses Base64.
func DecodeMediaPayload(b64, mimeType string) (MediaPayload, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return MediaPayload{}, Wrap(ErrIO, "decode media", err)
	}
	return MediaPayload{Data: data, MIMEType: mimeType}, nil
}

// Request is an immutable analysis request for one feature.
type Request struct {
	Kind  Kind
	Media []MediaPayload
	// Context is free-form text embedded in the prompt (historical data,
	// product snapshot, sales table).
	Context string
}

// NewRequest validates media arity for the kind and copies the media slice.
func NewRequest(kind Kind, context string, media ...MediaPayload) (Request, error) {
	spec, err := SpecFor(kind)
	if err != nil {
		return Request{}, err
	}
	if spec.Output == OutputChat {
		return Request{}, Errorf(ErrConfiguration, "new request", "%s is a conversation kind", kind)
	}
	if len(media) < spec.MinMedia || len(media) > spec.MaxMedia {
		if spec.MinMedia == spec.MaxMedia {
			return Request{}, Errorf(ErrConfiguration, "new request", "%s needs exactly %d media part(s), got %d", kind, spec.MinMedia, len(media))
		}
		return Request{}, Errorf(ErrConfiguration, "new request", "%s needs %d..%d media part(s), got %d", kind, spec.MinMedia, spec.MaxMedia, len(media))
	}
	for i, m := range media {
		if len(m.Data) == 0 {
			return Request{}, Errorf(ErrIO, "new request", "media part %d is empty", i)
		}
	}
	cp := make([]MediaPayload, len(media))
	copy(cp, media)
	return Request{Kind: kind, Media: cp, Context: context}, nil
}

// Response is either free-form text or a decoded structured object.
type Response struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text,omitempty"`
	// Structured holds the decoded object for schema-constrained kinds.
	Structured map[string]any `json:"structured,omitempty"`
	Model      string         `json:"model,omitempty"`
	Usage      Usage          `json:"usage"`
}

// IsStructured reports whether the response carries a decoded object.
func (r Response) IsStructured() bool { return r.Structured != nil }

// Decode re-marshals the structured object into v.
func (r Response) Decode(v any) error {
	if r.Structured == nil {
		return Errorf(ErrSchemaViolation, "decode", "response for %s is not structured", r.Kind)
	}
	b, err := json.Marshal(r.Structured)
	if err != nil {
		return Wrap(ErrSchemaViolation, "decode", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return Wrap(ErrSchemaViolation, "decode", err)
	}
	return nil
}

// Usage is token accounting reported by the provider, zero when unknown.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Forecast is the structured answer of the inventory forecast kind.
type Forecast struct {
	Analysis               string  `json:"analysis"`
	PredictedDemand        float64 `json:"predictedDemand"`
	ReorderRecommendation  bool    `json:"reorderRecommendation"`
	SuggestedOrderQuantity int64   `json:"suggestedOrderQuantity"`
}

// Urgent drives the "URGENT" reorder state of the inventory view.
func (f Forecast) Urgent() bool { return f.ReorderRecommendation }

// Insights is the structured answer of the business insights kind.
type Insights struct {
	Insights []string `json:"insights"`
}
