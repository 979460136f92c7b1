package creative

import (
	"time"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

// Brief is the input of the campaign creator.
type Brief struct {
	ProductName  string                 `json:"product_name" validate:"required,max=200"`
	Audience     string                 `json:"audience" validate:"required,max=200"`
	IncludeImage bool                   `json:"include_image"`
	ProductImage *analysis.MediaPayload `json:"-"`
}

// Campaign is one generated ad. Copy and Image are independent: either may
// be absent while the other succeeded.
type Campaign struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Product   string    `json:"product_name"`
	Audience  string    `json:"target_audience"`

	Copy    string `json:"generated_copy,omitempty"`
	HasCopy bool   `json:"has_copy"`
	CopyErr string `json:"copy_error,omitempty"`

	Image    *analysis.MediaPayload `json:"-"`
	ImageURL string                 `json:"generated_image_url,omitempty"`
	ImageErr string                 `json:"image_error,omitempty"`

	// UploadedImage reports whether a product photo guided the generation.
	UploadedImage bool `json:"uploaded_image"`
}

// Complete reports whether every requested part was produced.
func (c Campaign) Complete(imageRequested bool) bool {
	if !c.HasCopy {
		return false
	}
	return !imageRequested || c.Image != nil
}
